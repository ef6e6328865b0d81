package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleMAStreaming(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.False(t, ma.Ready())

		ma.Update(bars[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 0.001)

		// Window slides to the last 3.
		ma.Update(bars[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(bars[0])
		ma.Update(bars[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})

	t.Run("zero period never ready", func(t *testing.T) {
		ma := NewMA(0)
		ma.Update(bars[0])
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})

	t.Run("matches series calculation", func(t *testing.T) {
		ma := NewMA(4)
		series, _ := SMA(bars, 4)
		for i, b := range bars {
			ma.Update(b)
			assert.Equal(t, series[i].Valid, ma.Ready(), "bar %d", i)
			if ma.Ready() {
				assert.InDelta(t, series[i].V, ma.Value(), 1e-9)
			}
		}
	})
}

func TestExponentialMAStreaming(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	t.Run("basic functionality", func(t *testing.T) {
		ema := NewEMA(3)
		assert.Equal(t, "EMA(3)", ema.Name())
		assert.Equal(t, 3, ema.Warmup())
		assert.False(t, ema.Ready())

		ema.Update(bars[0])
		ema.Update(bars[1])
		assert.False(t, ema.Ready())

		ema.Update(bars[2])
		assert.True(t, ema.Ready())
		seed := (102.0 + 105.0 + 106.0) / 3.0
		assert.InDelta(t, seed, ema.Value(), 0.001)

		// multiplier = 2/(3+1) = 0.5
		ema.Update(bars[3])
		assert.InDelta(t, (108.0-seed)*0.5+seed, ema.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ema := NewEMA(2)
		ema.Update(bars[0])
		ema.Update(bars[1])
		ema.Reset()
		assert.False(t, ema.Ready())
		assert.Equal(t, 0.0, ema.Value())
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		ema := NewEMA(5)
		for _, b := range bars {
			ema.Update(b)
		}
		batch, _ := EMA(bars, 5)
		assert.InDelta(t, batch, ema.Value(), 0.001)
	})
}
