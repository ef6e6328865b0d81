package indicators

import (
	"fmt"

	"github.com/rustyeddy/swingsim/market"
)

// Value is one point of an indicator series. Valid is false where the
// window is not yet full.
type Value struct {
	V     float64
	Valid bool
}

// SMA returns the simple moving average of closes, one Value per bar. The
// first period-1 values are invalid; no partial-window average is produced.
func SMA(bars []market.Bar, period int) ([]Value, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}

	out := make([]Value, len(bars))
	sum := 0.0
	for i, b := range bars {
		sum += b.Close
		if i >= period {
			sum -= bars[i-period].Close
		}
		if i >= period-1 {
			out[i] = Value{V: sum / float64(period), Valid: true}
		}
	}
	return out, nil
}

// MovingAverages computes SMA for each period.
func MovingAverages(bars []market.Bar, periods []int) (map[int][]Value, error) {
	out := make(map[int][]Value, len(periods))
	for _, p := range periods {
		v, err := SMA(bars, p)
		if err != nil {
			return nil, err
		}
		out[p] = v
	}
	return out, nil
}

// MA calculates the Simple Moving Average of the last period closes.
func MA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(period), nil
}

// EMA calculates the Exponential Moving Average for the given period, seeded
// with the SMA of the first period closes.
func EMA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += bars[i].Close
	}
	ema := sma / float64(period)

	for i := period; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*multiplier + ema
	}

	return ema, nil
}
