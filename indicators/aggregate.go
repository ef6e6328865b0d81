package indicators

import (
	"fmt"
	"time"

	"github.com/rustyeddy/swingsim/market"
)

type Timeframe string

const (
	Daily   Timeframe = "daily"
	Weekly  Timeframe = "weekly"
	Monthly Timeframe = "monthly"
)

// Aggregate groups daily bars into ISO weeks (Monday start) or calendar
// months. Each group opens at its first bar's open, closes at its last bar's
// close, and spans the high/low extremes with summed volume. The group's date
// is its first bar's date. Daily returns a copy of bars.
func Aggregate(bars []market.Bar, tf Timeframe) ([]market.Bar, error) {
	var key func(time.Time) [2]int
	switch tf {
	case Daily:
		return append([]market.Bar(nil), bars...), nil
	case Weekly:
		key = func(t time.Time) [2]int {
			y, w := t.ISOWeek()
			return [2]int{y, w}
		}
	case Monthly:
		key = func(t time.Time) [2]int {
			return [2]int{t.Year(), int(t.Month())}
		}
	default:
		return nil, fmt.Errorf("unknown timeframe %q", tf)
	}

	var out []market.Bar
	var cur [2]int
	for i, b := range bars {
		k := key(b.Date)
		if i == 0 || k != cur {
			cur = k
			out = append(out, b)
			continue
		}
		g := &out[len(out)-1]
		g.High = max(g.High, b.High)
		g.Low = min(g.Low, b.Low)
		g.Close = b.Close
		g.Volume += b.Volume
	}
	return out, nil
}
