// Package pricing is the order cost model: commission, slippage, and the
// cash a fill moves in or out of the account.
package pricing

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/swingsim/market"
	"github.com/shopspring/decimal"
)

// ErrInvalidOrder reports a price or share count the cost model cannot quote.
var ErrInvalidOrder = errors.New("invalid order")

// DefaultMarginLeverage is used when a margin account has no leverage set.
const DefaultMarginLeverage = 3.0

// Schedule is a flat-rate commission and slippage schedule.
type Schedule struct {
	FeeRate      float64
	MinFee       float64
	MaxFee       float64 // zero disables the ceiling
	SlippageRate float64
}

// DefaultSchedule charges 0.1% commission, at least 55 and at most 1,070 per
// fill, and 0.05% slippage.
func DefaultSchedule() Schedule {
	return Schedule{FeeRate: 0.001, MinFee: 55, MaxFee: 1070, SlippageRate: 0.0005}
}

// Cost is the breakdown of a single fill. Total is what the account pays for
// a buy and what it receives for a sell.
type Cost struct {
	Notional float64
	Fee      float64
	Slippage float64
	Total    float64
}

// Validate rejects negative rates and an inverted fee clamp.
func (s Schedule) Validate() error {
	switch {
	case s.FeeRate < 0:
		return fmt.Errorf("fee rate %v is negative", s.FeeRate)
	case s.SlippageRate < 0:
		return fmt.Errorf("slippage rate %v is negative", s.SlippageRate)
	case s.MinFee < 0:
		return fmt.Errorf("min fee %v is negative", s.MinFee)
	case s.MaxFee < 0:
		return fmt.Errorf("max fee %v is negative", s.MaxFee)
	case s.MaxFee > 0 && s.MaxFee < s.MinFee:
		return fmt.Errorf("max fee %v below min fee %v", s.MaxFee, s.MinFee)
	}
	return nil
}

// Quote prices shares at price. Shares must be a positive multiple of
// market.LotSize and price must be positive.
func (s Schedule) Quote(price float64, shares int, side market.Side) (Cost, error) {
	if err := CheckOrder(price, shares); err != nil {
		return Cost{}, err
	}
	if !side.Valid() {
		return Cost{}, fmt.Errorf("%w: side %q", ErrInvalidOrder, side)
	}

	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(shares)))
	fee := s.fee(notional)
	slip := notional.Mul(decimal.NewFromFloat(s.SlippageRate)).Round(2)

	total := notional.Add(fee).Add(slip)
	if side == market.Sell {
		total = notional.Sub(fee).Sub(slip)
	}

	return Cost{
		Notional: notional.InexactFloat64(),
		Fee:      fee.InexactFloat64(),
		Slippage: slip.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}, nil
}

func (s Schedule) fee(notional decimal.Decimal) decimal.Decimal {
	fee := notional.Mul(decimal.NewFromFloat(s.FeeRate))
	if floor := decimal.NewFromFloat(s.MinFee); fee.LessThan(floor) {
		fee = floor
	}
	if s.MaxFee > 0 {
		if ceil := decimal.NewFromFloat(s.MaxFee); fee.GreaterThan(ceil) {
			fee = ceil
		}
	}
	return fee.Round(2)
}

// CheckOrder applies the lot and price rules shared by every quote.
func CheckOrder(price float64, shares int) error {
	if shares <= 0 {
		return fmt.Errorf("%w: shares %d must be positive", ErrInvalidOrder, shares)
	}
	if shares%market.LotSize != 0 {
		return fmt.Errorf("%w: shares %d not a multiple of %d", ErrInvalidOrder, shares, market.LotSize)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price %v must be positive", ErrInvalidOrder, price)
	}
	return nil
}

// EffectiveLeverage is 1 for spot and lev (or DefaultMarginLeverage when
// unset) for margin.
func EffectiveLeverage(tt market.TradingType, lev float64) float64 {
	if tt != market.Margin {
		return 1
	}
	if lev <= 0 {
		return DefaultMarginLeverage
	}
	return lev
}

// MaxShares is the largest lot-rounded share count that capital can carry at
// price under the given trading type. Costs are not deducted.
func MaxShares(capital, price float64, tt market.TradingType, lev float64) int {
	if capital <= 0 || price <= 0 {
		return 0
	}
	buyingPower := decimal.NewFromFloat(capital).Mul(decimal.NewFromFloat(EffectiveLeverage(tt, lev)))
	n := buyingPower.Div(decimal.NewFromFloat(price)).Floor().IntPart()
	return int(n/market.LotSize) * market.LotSize
}
