package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/pricing"
	"github.com/rustyeddy/swingsim/risk"
	"github.com/rustyeddy/swingsim/session"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// checkBuyingPowerLocked applies the cash rule for spot and the leveraged
// rule for margin. Margin buys need the buy total and shorts need the
// notional within capital x leverage less the open margin exposure.
func (e *Engine) checkBuyingPowerLocked(req OrderRequest, cost pricing.Cost) error {
	capital := e.s.CurrentCapital
	if req.TradingType == market.Spot {
		if cost.Total > capital {
			return fmt.Errorf("submit order: %w: cost %.2f exceeds capital %.2f",
				session.ErrInsufficientCapital, cost.Total, capital)
		}
		return nil
	}

	lev := pricing.EffectiveLeverage(market.Margin, e.opts.MarginLeverage)
	avail := capital*lev - e.marginExposureLocked()
	need := cost.Total
	if req.Side == market.Sell {
		need = cost.Notional
	}
	if need > avail {
		return fmt.Errorf("submit order: %w: need %.2f, margin buying power %.2f",
			session.ErrInsufficientCapital, need, avail)
	}
	return nil
}

// marginExposureLocked is the entry notional of open margin positions.
func (e *Engine) marginExposureLocked() float64 {
	total := 0.0
	for _, p := range e.s.Positions {
		if p.IsOpen() && p.TradingType == market.Margin {
			total += p.EntryPrice * float64(p.Shares)
		}
	}
	return total
}

// openLocked books a new position and its opening trade. A long pays the
// buy total out of capital; a short receives the sell total.
func (e *Engine) openLocked(x risk.Exposure, req OrderRequest, bar market.Bar, cost pricing.Cost) (session.Position, session.Trade) {
	capital := dec(e.s.CurrentCapital)
	typ := session.Long
	if x.Short {
		typ = session.Short
		capital = capital.Add(dec(cost.Total))
	} else {
		capital = capital.Sub(dec(cost.Total))
	}
	e.s.CurrentCapital = capital.InexactFloat64()

	pos := session.Position{
		ID:          x.PositionID,
		SessionID:   e.s.ID,
		Type:        typ,
		TradingType: req.TradingType,
		Shares:      req.Shares,
		EntryPrice:  bar.Close,
		EntryDate:   bar.Date,
		Status:      session.Open,
	}
	tr := session.Trade{
		ID:                e.opts.NewID(),
		SessionID:         e.s.ID,
		PositionID:        pos.ID,
		Type:              req.Side,
		IsShort:           x.Short,
		TradeDate:         bar.Date,
		Price:             bar.Close,
		Shares:            req.Shares,
		Fee:               cost.Fee,
		Slippage:          cost.Slippage,
		TotalCost:         cost.Total,
		Memo:              req.Memo,
		CapitalAfterTrade: e.s.CurrentCapital,
		Seq:               e.s.NextSeq(),
	}
	e.s.Positions = append(e.s.Positions, pos)
	e.s.Trades = append(e.s.Trades, tr)
	return pos, tr
}

// closeLocked settles p at the current close.
//
// Long:  profit = sellTotal(exit) - entry*shares; capital += sellTotal(exit).
// Short: profit = sellTotal(entry) - sellTotal(exit); capital -= sellTotal(exit).
func (e *Engine) closeLocked(p *session.Position, memo string) (session.Trade, error) {
	bar := e.currentBarLocked()
	exit, err := e.opts.Schedule.Quote(bar.Close, p.Shares, market.Sell)
	if err != nil {
		return session.Trade{}, quoteErr("close position", err)
	}

	basis := dec(p.EntryPrice).Mul(decimal.NewFromInt(int64(p.Shares)))
	capital := dec(e.s.CurrentCapital)
	var profit decimal.Decimal
	side := market.Sell

	if p.Type == session.Short {
		entry, err := e.opts.Schedule.Quote(p.EntryPrice, p.Shares, market.Sell)
		if err != nil {
			return session.Trade{}, quoteErr("close position", err)
		}
		profit = dec(entry.Total).Sub(dec(exit.Total))
		capital = capital.Sub(dec(exit.Total))
		side = market.Buy
	} else {
		profit = dec(exit.Total).Sub(basis)
		capital = capital.Add(dec(exit.Total))
	}

	rate := decimal.Zero
	if !basis.IsZero() {
		rate = profit.Div(basis).Mul(decimal.NewFromInt(100))
	}

	e.s.CurrentCapital = capital.InexactFloat64()
	p.Status = session.Closed
	p.ExitPrice = session.Ptr(bar.Close)
	p.ExitDate = session.Ptr(bar.Date)
	p.Profit = session.Ptr(profit.InexactFloat64())
	p.ProfitRate = session.Ptr(rate.InexactFloat64())

	tr := session.Trade{
		ID:                e.opts.NewID(),
		SessionID:         e.s.ID,
		PositionID:        p.ID,
		Type:              side,
		IsShort:           p.Type == session.Short,
		TradeDate:         bar.Date,
		Price:             bar.Close,
		Shares:            p.Shares,
		Fee:               exit.Fee,
		Slippage:          exit.Slippage,
		TotalCost:         exit.Total,
		Memo:              memo,
		CapitalAfterTrade: e.s.CurrentCapital,
		Seq:               e.s.NextSeq(),
	}
	e.s.Trades = append(e.s.Trades, tr)
	return tr, nil
}

// equityLocked is capital plus open longs at mark less open shorts at mark.
func (e *Engine) equityLocked(mark float64) float64 {
	eq := e.s.CurrentCapital
	for _, p := range e.s.Positions {
		if !p.IsOpen() {
			continue
		}
		v := float64(p.Shares) * mark
		if p.Type == session.Short {
			eq -= v
		} else {
			eq += v
		}
	}
	return eq
}

// markEquityLocked updates PeakEquity and MaxDrawdown (percent below peak)
// at the current close.
func (e *Engine) markEquityLocked() {
	eq := e.equityLocked(e.currentBarLocked().Close)
	if eq > e.s.PeakEquity {
		e.s.PeakEquity = eq
	}
	if e.s.PeakEquity <= 0 {
		return
	}
	if dd := (e.s.PeakEquity - eq) / e.s.PeakEquity * 100; dd > e.s.MaxDrawdown {
		e.s.MaxDrawdown = dd
	}
}

// Equity is the session's mark-to-market value at the current close.
func (e *Engine) Equity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.equityLocked(e.currentBarLocked().Close)
}

// Unrealized returns the open profit of a position at the current close and
// its percentage of entry notional.
func (e *Engine) Unrealized(positionID string) (pnl, pct float64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.s.Position(positionID)
	if p == nil {
		return 0, 0, fmt.Errorf("unrealized: %w: no position %q", session.ErrValidation, positionID)
	}
	if !p.IsOpen() {
		return 0, 0, fmt.Errorf("unrealized: %q is closed: %w", positionID, session.ErrInvalidOperation)
	}
	pnl, pct = risk.Unrealized(p.Exposure(), e.currentBarLocked().Close)
	return pnl, pct, nil
}
