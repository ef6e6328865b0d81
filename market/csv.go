package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// NamesFile optionally maps symbols to display names inside a data directory.
// Rows are "symbol,name".
const NamesFile = "symbols.csv"

var _ Catalog = (*CSVProvider)(nil)

// CSVProvider reads daily bars from <Dir>/<SYMBOL>.csv with rows
//
//	date,open,high,low,close,volume
//
// where date is YYYY-MM-DD. A header row ("date,...") is allowed and blank
// rows are skipped. Files are parsed once and cached.
type CSVProvider struct {
	Dir string

	mu    sync.Mutex
	cache map[string][]Bar
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir, cache: make(map[string][]Bar)}
}

func (p *CSVProvider) FetchPrices(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	all, err := p.load(symbol)
	if err != nil {
		return nil, err
	}
	return selectRange(symbol, all, start, end)
}

func (p *CSVProvider) Symbols(_ context.Context) ([]Instrument, error) {
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
		if e.IsDir() || e.Name() == NamesFile || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		sym := strings.TrimSuffix(e.Name(), ".csv")
		out = append(out, Instrument{Symbol: sym, Name: names[sym]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (p *CSVProvider) load(symbol string) ([]Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bars, ok := p.cache[symbol]; ok {
		return bars, nil
	}

	f, err := os.Open(filepath.Join(p.Dir, symbol+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", symbol, err)
	}
	p.cache[symbol] = bars
	return bars, nil
}

// ReadBarsCSV parses daily bars for one symbol and checks the series order.
func ReadBarsCSV(r io.Reader, symbol string) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var bars []Bar
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "date") {
				continue
			}
		}
		b, err := parseBarRow(symbol, row)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}

	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func parseBarRow(symbol string, row []string) (Bar, error) {
	if len(row) < 6 {
		return Bar{}, fmt.Errorf("bad row (need date,open,high,low,close,volume): %v", row)
	}

	d, err := time.Parse(DateLayout, strings.TrimSpace(row[0]))
	if err != nil {
		return Bar{}, fmt.Errorf("bad date %q: %w", row[0], err)
	}

	vals := make([]float64, 5)
	for i := range vals {
		s := strings.TrimSpace(row[i+1])
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad number %q on %s: %w", s, row[0], err)
		}
		vals[i] = v
	}

	return Bar{
		Symbol: symbol,
		Date:   d,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// WriteBarsCSV writes bars in the format ReadBarsCSV accepts.
func WriteBarsCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		err := cw.Write([]string{
			b.Date.Format(DateLayout),
			ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close), ff(b.Volume),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readNames(path string) (map[string]string, error) {
	names := map[string]string{}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return names, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		names[strings.TrimSpace(row[0])] = strings.TrimSpace(row[1])
	}
	return names, nil
}

func ff(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
