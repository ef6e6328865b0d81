// Package metrics records simulator activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the engine and syncer metrics hooks using Prometheus.
type Recorder struct {
	orders       *prometheus.CounterVec
	violations   *prometheus.CounterVec
	syncFailures prometheus.Counter
	bars         prometheus.Counter
	capital      *prometheus.GaugeVec
	saveDuration prometheus.Histogram
}

// New registers the recorder's collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingsim_orders_total",
				Help: "Filled orders by side and trading type",
			},
			[]string{"side", "trading_type"},
		),
		violations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swingsim_rule_violations_total",
				Help: "Recorded rule violations by rule and severity",
			},
			[]string{"type", "severity"},
		),
		syncFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "swingsim_sync_failures_total",
			Help: "Session saves that failed after every retry",
		}),
		bars: f.NewCounter(prometheus.CounterOpts{
			Name: "swingsim_bars_advanced_total",
			Help: "Bars advanced across all sessions",
		}),
		capital: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swingsim_session_capital",
				Help: "Current cash capital of a session",
			},
			[]string{"session"},
		),
		saveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "swingsim_save_duration_seconds",
			Help:    "Duration of session saves",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Recorder) OrderFilled(side, tradingType string) {
	r.orders.WithLabelValues(side, tradingType).Inc()
}

func (r *Recorder) ViolationRecorded(rule, severity string) {
	r.violations.WithLabelValues(rule, severity).Inc()
}

func (r *Recorder) BarAdvanced() {
	r.bars.Inc()
}

func (r *Recorder) Capital(sessionID string, v float64) {
	r.capital.WithLabelValues(sessionID).Set(v)
}

func (r *Recorder) SyncFailed() {
	r.syncFailures.Inc()
}

func (r *Recorder) SaveDuration(d time.Duration) {
	r.saveDuration.Observe(d.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) OrderFilled(string, string)       {}
func (Nop) ViolationRecorded(string, string) {}
func (Nop) BarAdvanced()                     {}
func (Nop) Capital(string, float64)          {}
func (Nop) SyncFailed()                      {}
func (Nop) SaveDuration(time.Duration)       {}
