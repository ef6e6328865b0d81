package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.OrderFilled("buy", "spot")
	r.OrderFilled("buy", "spot")
	r.OrderFilled("sell", "margin")
	r.ViolationRecorded("stop_loss", "critical")
	r.BarAdvanced()
	r.Capital("s1", 899850)
	r.SyncFailed()
	r.SaveDuration(20 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.orders.WithLabelValues("buy", "spot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.orders.WithLabelValues("sell", "margin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.violations.WithLabelValues("stop_loss", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.bars))
	assert.Equal(t, 899850.0, testutil.ToFloat64(r.capital.WithLabelValues("s1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.syncFailures))

	n, err := testutil.GatherAndCount(reg, "swingsim_save_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSeparateRegistries(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
