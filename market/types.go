package market

import "fmt"

// TradingType selects cash-settled (spot) or leveraged (margin) trading.
type TradingType string

const (
	Spot   TradingType = "spot"
	Margin TradingType = "margin"
)

func (t TradingType) Valid() bool {
	return t == Spot || t == Margin
}

// ParseTradingType accepts "spot" or "margin".
func ParseTradingType(s string) (TradingType, error) {
	t := TradingType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown trading type %q", s)
	}
	return t, nil
}

// Side is the direction of a single fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}
