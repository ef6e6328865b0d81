// Package market holds the daily price bars a practice session replays and
// the collaborators that supply them.
package market

import (
	"fmt"
	"time"
)

// LotSize is the minimum tradable unit. Order sizes must be a multiple of it.
const LotSize = 100

// DateLayout is the calendar-day layout used in CSV files and on the CLI.
const DateLayout = "2006-01-02"

// Bar is one day's OHLCV record for a symbol. Bars are values and are never
// mutated once loaded.
type Bar struct {
	Symbol string
	Date   time.Time // UTC midnight of the trading day
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateSeries checks that bars are strictly ascending by date with no
// duplicate days.
func ValidateSeries(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("bar %d (%s) is not after bar %d (%s)",
				i, bars[i].Date.Format(DateLayout), i-1, bars[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// Closes returns the close of every bar.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Between returns the bars whose date falls in [start, end]. A zero start or
// end leaves that side unbounded.
func Between(bars []Bar, start, end time.Time) []Bar {
	var out []Bar
	for _, b := range bars {
		if !start.IsZero() && b.Date.Before(Day(start)) {
			continue
		}
		if !end.IsZero() && b.Date.After(Day(end)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

var zeroTime time.Time
