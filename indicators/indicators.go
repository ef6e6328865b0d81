// Package indicators computes chart overlays from daily bars: moving
// averages and weekly or monthly aggregation. Everything here is a pure
// function of its input, except the streaming indicators which keep their
// own window.
package indicators

import "github.com/rustyeddy/swingsim/market"

// Indicator computes a single streaming value from bars.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	Ready() bool

	// Value is 0 until Ready.
	Value() float64
}

var (
	_ Indicator = (*SimpleMA)(nil)
	_ Indicator = (*ExponentialMA)(nil)
)
