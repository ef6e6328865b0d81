package sim

import (
	"time"

	"github.com/rustyeddy/swingsim/session"
)

// Syncer receives a snapshot after every committed change. Commit must not
// block on storage.
type Syncer interface {
	Commit(s *session.Session)
	Dirty() bool
}

// failureReporter is implemented by syncers that can report exhausted
// retries back to the engine.
type failureReporter interface {
	OnFailure(func(err error))
}

// Metrics is the subset of metrics.Recorder the engine uses.
type Metrics interface {
	OrderFilled(side, tradingType string)
	ViolationRecorded(rule, severity string)
	BarAdvanced()
	Capital(sessionID string, v float64)
}

type nopSyncer struct{}

func (nopSyncer) Commit(*session.Session) {}
func (nopSyncer) Dirty() bool            { return false }

type nopMetrics struct{}

func (nopMetrics) OrderFilled(string, string)       {}
func (nopMetrics) ViolationRecorded(string, string) {}
func (nopMetrics) BarAdvanced()                     {}
func (nopMetrics) Capital(string, float64)          {}

func systemClock() time.Time { return time.Now().UTC() }
