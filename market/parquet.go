package market

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
)

var _ Catalog = (*ParquetProvider)(nil)

// BarRecord is the Parquet schema for daily bars.
type BarRecord struct {
	Symbol string  `parquet:"symbol"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

// ParquetProvider reads daily bars from <Dir>/<SYMBOL>.parquet.
type ParquetProvider struct {
	Dir string

	mu    sync.Mutex
	cache map[string][]Bar
}

func NewParquetProvider(dir string) *ParquetProvider {
	return &ParquetProvider{Dir: dir, cache: make(map[string][]Bar)}
}

func (p *ParquetProvider) FetchPrices(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	all, err := p.load(symbol)
	if err != nil {
		return nil, err
	}
	return selectRange(symbol, all, start, end)
}

func (p *ParquetProvider) Symbols(_ context.Context) ([]Instrument, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.Dir, err)
	}
	names, err := readNames(filepath.Join(p.Dir, NamesFile))
	if err != nil {
		return nil, err
	}

	var out []Instrument
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		sym := strings.TrimSuffix(e.Name(), ".parquet")
		out = append(out, Instrument{Symbol: sym, Name: names[sym]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (p *ParquetProvider) load(symbol string) ([]Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bars, ok := p.cache[symbol]; ok {
		return bars, nil
	}

	path := filepath.Join(p.Dir, symbol+".parquet")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	bars := make([]Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, Bar{
			Symbol: symbol,
			Date:   time.UnixMilli(r.Date).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if err := ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	p.cache[symbol] = bars
	return bars, nil
}

// WriteBarsParquet writes bars to a Parquet file at path.
func WriteBarsParquet(path string, bars []Bar) error {
	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, BarRecord{
			Symbol: b.Symbol,
			Date:   Day(b.Date).UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
