package risk

import "math"

// Notional is the mark-to-market value of an exposure.
func Notional(e Exposure, mark float64) float64 {
	return float64(e.Shares) * mark
}

// Unrealized returns the open profit and its percentage of entry notional.
// Longs gain when mark rises, shorts when it falls.
func Unrealized(e Exposure, mark float64) (pnl, pct float64) {
	move := mark - e.EntryPrice
	if e.Short {
		move = -move
	}
	pnl = move * float64(e.Shares)
	basis := e.EntryPrice * float64(e.Shares)
	if basis == 0 {
		return pnl, 0
	}
	return pnl, pnl / basis * 100
}

// SizePct is a position's notional as a percentage of capital. Capital at or
// below zero makes any exposure unbounded.
func SizePct(shares int, price, capital float64) float64 {
	if capital <= 0 {
		if shares == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(shares) * price / capital * 100
}

// LeverageRatio is gross notional over capital.
func LeverageRatio(positions []Exposure, price, capital float64) float64 {
	gross := 0.0
	for _, e := range positions {
		gross += Notional(e, price)
	}
	if capital <= 0 {
		if gross == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return gross / capital
}
