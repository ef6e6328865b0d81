package sim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/swingsim/internal/validate"
	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/pricing"
	"github.com/rustyeddy/swingsim/risk"
	"github.com/rustyeddy/swingsim/session"
)

// OrderRequest is an immediate-fill market order at the current bar's close.
// A buy opens a long; a margin sell opens a short. Positions close only
// through ClosePosition.
type OrderRequest struct {
	Side        market.Side        `json:"side" validate:"required,oneof=buy sell"`
	TradingType market.TradingType `json:"trading_type" validate:"required,oneof=spot margin"`
	Shares      int                `json:"shares" validate:"gt=0"`
	Memo        string             `json:"memo" validate:"required"`
}

func validateRequest(op string, req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%s: %w: %w", op, session.ErrValidation, err)
	}
	return nil
}

// check rejects a spot sell before anything else, so the answer does not
// depend on the share count or memo.
func (r OrderRequest) check() error {
	if r.Side == market.Sell && r.TradingType == market.Spot {
		return fmt.Errorf("submit order: spot positions close through ClosePosition: %w",
			session.ErrInvalidOperation)
	}
	if err := validateRequest("submit order", r); err != nil {
		return err
	}
	if strings.TrimSpace(r.Memo) == "" {
		return fmt.Errorf("submit order: %w: memo is blank", session.ErrValidation)
	}
	if r.Shares%market.LotSize != 0 {
		return fmt.Errorf("submit order: %w: shares %d not a multiple of %d",
			session.ErrValidation, r.Shares, market.LotSize)
	}
	return nil
}

// SubmitOrder fills req against the current bar. A playing session is
// paused first. Pre-trade advisories that are new to the session are
// recorded with the fill; they never block it.
func (e *Engine) SubmitOrder(req OrderRequest) (ChangeSet, error) {
	return e.run(func() (EventKind, ChangeSet, error) {
		if err := e.s.CheckActive("submit order"); err != nil {
			return "", ChangeSet{}, err
		}
		cs := ChangeSet{StatusChanged: e.pauseLocked()}

		if err := req.check(); err != nil {
			return "", cs, err
		}

		bar := e.currentBarLocked()
		cost, err := e.opts.Schedule.Quote(bar.Close, req.Shares, req.Side)
		if err != nil {
			return "", cs, quoteErr("submit order", err)
		}
		if err := e.checkBuyingPowerLocked(req, cost); err != nil {
			return "", cs, err
		}

		next := risk.Exposure{
			PositionID: e.opts.NewID(),
			Short:      req.Side == market.Sell,
			Shares:     req.Shares,
			EntryPrice: bar.Close,
		}
		advisories := risk.PreTrade(e.opts.Policy, e.riskSnapshotLocked(), next)

		pos, tr := e.openLocked(next, req, bar, cost)
		cs.Positions = []session.Position{pos}
		cs.Trades = []session.Trade{tr}
		cs.Violations = e.recordLocked(advisories)
		e.markEquityLocked()

		e.opts.Metrics.OrderFilled(string(req.Side), string(req.TradingType))
		e.log.Info().Str("side", string(req.Side)).Str("trading_type", string(req.TradingType)).
			Int("shares", req.Shares).Float64("price", bar.Close).Float64("total", cost.Total).
			Float64("capital", e.s.CurrentCapital).Msg("order filled")
		return EventOrderFilled, cs, nil
	})
}

// PreTradeCheck returns the advisories an order would record, without
// filling it or changing the session.
func (e *Engine) PreTradeCheck(req OrderRequest) ([]risk.Violation, error) {
	if err := req.check(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.s.CheckActive("pre-trade check"); err != nil {
		return nil, err
	}
	price := e.currentBarLocked().Close
	if err := pricing.CheckOrder(price, req.Shares); err != nil {
		return nil, quoteErr("pre-trade check", err)
	}
	next := risk.Exposure{
		PositionID: "pending",
		Short:      req.Side == market.Sell,
		Shares:     req.Shares,
		EntryPrice: price,
	}
	return risk.Filter(risk.PreTrade(e.opts.Policy, e.riskSnapshotLocked(), next), e.s.RecordedKeys()), nil
}

// ClosePosition exits an open position at the current bar's close. Both
// longs and shorts are costed with the sell schedule.
func (e *Engine) ClosePosition(positionID, memo string) (ChangeSet, error) {
	return e.run(func() (EventKind, ChangeSet, error) {
		if err := e.s.CheckActive("close position"); err != nil {
			return "", ChangeSet{}, err
		}
		cs := ChangeSet{StatusChanged: e.pauseLocked()}

		if strings.TrimSpace(memo) == "" {
			return "", cs, fmt.Errorf("close position: %w: memo is required", session.ErrValidation)
		}
		p := e.s.Position(positionID)
		if p == nil {
			return "", cs, fmt.Errorf("close position: %w: no position %q", session.ErrValidation, positionID)
		}
		if !p.IsOpen() {
			return "", cs, fmt.Errorf("close position: %q is already closed: %w", positionID, session.ErrInvalidOperation)
		}

		tr, err := e.closeLocked(p, memo)
		if err != nil {
			return "", cs, err
		}
		cs.Positions = []session.Position{*p}
		cs.Trades = []session.Trade{tr}
		e.s.RecomputeStats()
		e.markEquityLocked()

		e.opts.Metrics.OrderFilled(string(tr.Type), string(p.TradingType))
		e.log.Info().Str("position", p.ID).Str("type", string(p.Type)).
			Float64("profit", *p.Profit).Float64("capital", e.s.CurrentCapital).Msg("position closed")
		return EventPositionClosed, cs, nil
	})
}

func quoteErr(op string, err error) error {
	if errors.Is(err, pricing.ErrInvalidOrder) {
		return fmt.Errorf("%s: %w: %w", op, session.ErrValidation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
