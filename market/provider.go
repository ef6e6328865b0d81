package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrDataUnavailable is the parent of every price-data failure. Session
	// creation treats it as fatal.
	ErrDataUnavailable = errors.New("price data unavailable")

	ErrUnknownSymbol       = fmt.Errorf("%w: unknown symbol", ErrDataUnavailable)
	ErrRangeUnavailable    = fmt.Errorf("%w: range unavailable", ErrDataUnavailable)
	ErrInsufficientHistory = fmt.Errorf("%w: no symbol has enough history", ErrDataUnavailable)
)

// Instrument names a tradable symbol.
type Instrument struct {
	Symbol string
	Name   string
}

// PriceProvider supplies ascending, gap-free daily bars for a symbol.
// A zero start or end leaves that side of the range open.
type PriceProvider interface {
	FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// Catalog is a PriceProvider that can also enumerate its symbols.
type Catalog interface {
	PriceProvider
	Symbols(ctx context.Context) ([]Instrument, error)
}

// Compile-time interface checks.
var _ Catalog = (*MemoryProvider)(nil)

// MemoryProvider serves bars held in memory. It is used for fixtures and tests.
type MemoryProvider struct {
	mu    sync.RWMutex
	names map[string]string
	bars  map[string][]Bar
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		names: make(map[string]string),
		bars:  make(map[string][]Bar),
	}
}

// Add registers bars for an instrument, replacing any previous series.
func (m *MemoryProvider) Add(inst Instrument, bars []Bar) error {
	if err := ValidateSeries(bars); err != nil {
		return fmt.Errorf("add %s: %w", inst.Symbol, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[inst.Symbol] = inst.Name
	m.bars[inst.Symbol] = append([]Bar(nil), bars...)
	return nil
}

func (m *MemoryProvider) FetchPrices(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all, ok := m.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return selectRange(symbol, all, start, end)
}

func (m *MemoryProvider) Symbols(_ context.Context) ([]Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Instrument, 0, len(m.bars))
	for sym := range m.bars {
		out = append(out, Instrument{Symbol: sym, Name: m.names[sym]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func selectRange(symbol string, all []Bar, start, end time.Time) ([]Bar, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, fmt.Errorf("%w: %s end %s before start %s", ErrRangeUnavailable,
			symbol, end.Format(DateLayout), start.Format(DateLayout))
	}
	out := Between(all, start, end)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no bars in range", ErrRangeUnavailable, symbol)
	}
	return out, nil
}
