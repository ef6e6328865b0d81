package indicators

import (
	"testing"
	"time"

	"github.com/rustyeddy/swingsim/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestBars() []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Symbol: "T", Date: start.AddDate(0, 0, i), Open: c - 1, High: c + 2, Low: c - 2, Close: c, Volume: 100}
	}
	return bars
}

func TestMA(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	ma, err := MA(bars, 5)
	require.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)

	_, err = MA(bars, 11)
	assert.Error(t, err)
	_, err = MA(bars, 0)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	ema, err := EMA(bars, 5)
	require.NoError(t, err)
	sma, _ := MA(bars, 5)
	assert.Greater(t, ema, 0.0)
	assert.Greater(t, ema, sma-5)

	_, err = EMA(bars[:3], 5)
	assert.Error(t, err)
}

func TestSMASeries(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	got, err := SMA(bars, 3)
	require.NoError(t, err)
	require.Len(t, got, len(bars))

	assert.False(t, got[0].Valid)
	assert.False(t, got[1].Valid, "no partial-window average")
	assert.True(t, got[2].Valid)
	assert.InDelta(t, (102.0+105+106)/3, got[2].V, 1e-9)
	assert.InDelta(t, (114.0+116+118)/3, got[9].V, 1e-9)

	last, _ := MA(bars, 3)
	assert.InDelta(t, last, got[9].V, 1e-9)

	_, err = SMA(bars, 0)
	assert.Error(t, err)
}

func TestSMAShortSeriesAllInvalid(t *testing.T) {
	t.Parallel()
	got, err := SMA(createTestBars()[:2], 5)
	require.NoError(t, err)
	for _, v := range got {
		assert.False(t, v.Valid)
	}
}

func TestMovingAverages(t *testing.T) {
	t.Parallel()
	got, err := MovingAverages(createTestBars(), []int{5, 25})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got[5][4].Valid)
	assert.False(t, got[25][9].Valid)

	_, err = MovingAverages(createTestBars(), []int{-1})
	assert.Error(t, err)
}
