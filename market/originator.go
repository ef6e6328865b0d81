package market

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Window is a contiguous slice of bars chosen for a practice session. Bars
// before PracticeStartIndex are historical context only.
type Window struct {
	Instrument
	Bars               []Bar
	PracticeStartIndex int
}

// Originator picks a random symbol and a contiguous window of
// historicalDays+periodDays bars from a Catalog.
type Originator struct {
	catalog Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

func NewOriginator(c Catalog, rng *rand.Rand) *Originator {
	return &Originator{catalog: c, rng: rng}
}

// Pick returns a window with PracticeStartIndex == historicalDays. It fails
// with ErrInsufficientHistory when no symbol has enough bars.
func (o *Originator) Pick(ctx context.Context, periodDays, historicalDays int) (Window, error) {
	if periodDays <= 0 || historicalDays < 0 {
		return Window{}, fmt.Errorf("pick window: period %d / history %d out of range", periodDays, historicalDays)
	}
	need := periodDays + historicalDays

	symbols, err := o.catalog.Symbols(ctx)
	if err != nil {
		return Window{}, fmt.Errorf("pick window: %w", err)
	}

	o.mu.Lock()
	order := o.rng.Perm(len(symbols))
	o.mu.Unlock()

	for _, i := range order {
		if err := ctx.Err(); err != nil {
			return Window{}, err
		}
		inst := symbols[i]
		bars, err := o.catalog.FetchPrices(ctx, inst.Symbol, zeroTime, zeroTime)
		if errors.Is(err, ErrDataUnavailable) {
			continue
		}
		if err != nil {
			return Window{}, fmt.Errorf("pick window: %s: %w", inst.Symbol, err)
		}
		if len(bars) < need {
			continue
		}

		return o.cut(inst, bars, need, historicalDays), nil
	}

	return Window{}, fmt.Errorf("%w: need %d bars (%d history + %d practice)",
		ErrInsufficientHistory, need, historicalDays, periodDays)
}

// PickSymbol is Pick restricted to one symbol. Only the offset is random.
func (o *Originator) PickSymbol(ctx context.Context, symbol string, periodDays, historicalDays int) (Window, error) {
	if periodDays <= 0 || historicalDays < 0 {
		return Window{}, fmt.Errorf("pick window: period %d / history %d out of range", periodDays, historicalDays)
	}
	need := periodDays + historicalDays

	bars, err := o.catalog.FetchPrices(ctx, symbol, zeroTime, zeroTime)
	if err != nil {
		return Window{}, fmt.Errorf("pick window: %s: %w", symbol, err)
	}
	if len(bars) < need {
		return Window{}, fmt.Errorf("%w: %s has %d bars, need %d", ErrInsufficientHistory, symbol, len(bars), need)
	}

	inst := Instrument{Symbol: symbol}
	if symbols, err := o.catalog.Symbols(ctx); err == nil {
		for _, s := range symbols {
			if s.Symbol == symbol {
				inst = s
				break
			}
		}
	}
	return o.cut(inst, bars, need, historicalDays), nil
}

func (o *Originator) cut(inst Instrument, bars []Bar, need, historicalDays int) Window {
	o.mu.Lock()
	offset := o.rng.Intn(len(bars) - need + 1)
	o.mu.Unlock()

	window := make([]Bar, need)
	copy(window, bars[offset:offset+need])
	return Window{
		Instrument:         inst,
		Bars:               window,
		PracticeStartIndex: historicalDays,
	}
}
