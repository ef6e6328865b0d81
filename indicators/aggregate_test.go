package indicators

import (
	"testing"
	"time"

	"github.com/rustyeddy/swingsim/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(date string, o, h, l, c, v float64) market.Bar {
	d, err := time.Parse(market.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return market.Bar{Symbol: "T", Date: d, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestAggregateWeekly(t *testing.T) {
	t.Parallel()
	bars := []market.Bar{
		// ISO week 1 of 2025 starts Monday 2024-12-30.
		bar("2024-12-30", 10, 12, 9, 11, 100),
		bar("2024-12-31", 11, 15, 10, 14, 200),
		bar("2025-01-03", 14, 14, 8, 9, 300),
		bar("2025-01-06", 9, 10, 7, 8, 50),
		bar("2025-01-10", 8, 20, 8, 19, 60),
	}

	got, err := Aggregate(bars, Weekly)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, bars[0].Date, got[0].Date)
	assert.Equal(t, 10.0, got[0].Open)
	assert.Equal(t, 15.0, got[0].High)
	assert.Equal(t, 8.0, got[0].Low)
	assert.Equal(t, 9.0, got[0].Close)
	assert.Equal(t, 600.0, got[0].Volume)

	assert.Equal(t, bars[3].Date, got[1].Date)
	assert.Equal(t, 19.0, got[1].Close)
	assert.Equal(t, 110.0, got[1].Volume)
}

func TestAggregateMonthly(t *testing.T) {
	t.Parallel()
	bars := []market.Bar{
		bar("2024-12-30", 10, 12, 9, 11, 100),
		bar("2024-12-31", 11, 15, 10, 14, 200),
		bar("2025-01-02", 14, 14, 8, 9, 300),
	}

	got, err := Aggregate(bars, Monthly)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 14.0, got[0].Close)
	assert.Equal(t, 300.0, got[0].Volume)
	assert.Equal(t, 9.0, got[1].Close)
}

func TestAggregateIsPure(t *testing.T) {
	t.Parallel()
	bars := createTestBars()
	before := append([]market.Bar(nil), bars...)

	a, err := Aggregate(bars, Weekly)
	require.NoError(t, err)
	b, err := Aggregate(bars, Weekly)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, before, bars)

	d, err := Aggregate(bars, Daily)
	require.NoError(t, err)
	assert.Equal(t, bars, d)

	_, err = Aggregate(bars, "hourly")
	assert.Error(t, err)

	empty, err := Aggregate(nil, Monthly)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
