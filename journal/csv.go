package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/session"
)

var (
	tradeHeader = []string{
		"trade_id", "position_id", "date", "type", "short", "price", "shares",
		"fee", "slippage", "total_cost", "capital_after", "memo",
	}
	violationHeader = []string{
		"violation_id", "timestamp", "position_id", "type", "severity", "description",
	}
)

// ExportCSV writes <dir>/<session>-trades.csv and
// <dir>/<session>-violations.csv and returns their paths.
func ExportCSV(dir string, s *session.Session) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export %s: %w", s.ID, err)
	}

	trades := make([][]string, 0, len(s.Trades))
	for _, t := range s.Trades {
		trades = append(trades, []string{
			t.ID,
			t.PositionID,
			t.TradeDate.UTC().Format(market.DateLayout),
			string(t.Type),
			strconv.FormatBool(t.IsShort),
			f(t.Price),
			strconv.Itoa(t.Shares),
			f(t.Fee),
			f(t.Slippage),
			f(t.TotalCost),
			f(t.CapitalAfterTrade),
			t.Memo,
		})
	}

	violations := make([][]string, 0, len(s.Violations))
	for _, v := range s.Violations {
		violations = append(violations, []string{
			v.ID,
			v.Timestamp.UTC().Format(time.RFC3339),
			v.PositionID,
			string(v.Type),
			string(v.Severity),
			v.Description,
		})
	}

	tp := filepath.Join(dir, s.ID+"-trades.csv")
	if err := writeCSV(tp, tradeHeader, trades); err != nil {
		return nil, fmt.Errorf("export %s: %w", s.ID, err)
	}
	vp := filepath.Join(dir, s.ID+"-violations.csv")
	if err := writeCSV(vp, violationHeader, violations); err != nil {
		return nil, fmt.Errorf("export %s: %w", s.ID, err)
	}
	return []string{tp, vp}, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		_ = file.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}
