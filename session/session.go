// Package session is the data model of a practice run and its lifecycle
// state machine. A Session owns its positions, trades and rule violations.
package session

import (
	"time"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/risk"
)

// SchemaVersion is the current on-disk shape of a Session.
const SchemaVersion = 2

type Status string

const (
	Paused    Status = "paused"
	Playing   Status = "playing"
	Completed Status = "completed"
)

type PositionType string

const (
	Long  PositionType = "long"
	Short PositionType = "short"
)

type PositionStatus string

const (
	Open   PositionStatus = "open"
	Closed PositionStatus = "closed"
)

type Session struct {
	SchemaVersion int `json:"schema_version"`

	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`

	InitialCapital float64 `json:"initial_capital"`
	CurrentCapital float64 `json:"current_capital"`

	// StartDate and EndDate bound the full bar window, history included.
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	PeriodDays         int       `json:"period_days"`
	PracticeStartIndex int       `json:"practice_start_index"`
	CurrentDay         int       `json:"current_day"`

	Status        Status        `json:"status"`
	PlaybackSpeed time.Duration `json:"playback_speed"`
	MAPeriods     []int         `json:"ma_periods"`

	TradeCount         int     `json:"trade_count"`
	WinCount           int     `json:"win_count"`
	WinRate            float64 `json:"win_rate"`
	RuleViolationCount int     `json:"rule_violation_count"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	PeakEquity         float64 `json:"peak_equity"`

	Positions  []Position      `json:"positions"`
	Trades     []Trade         `json:"trades"`
	Violations []RuleViolation `json:"violations"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// LegacyPracticeStartDate is only set on records older than
	// SchemaVersion 2. Migrate replaces it with PracticeStartIndex.
	LegacyPracticeStartDate *time.Time `json:"practice_start_date,omitempty"`
}

type Position struct {
	ID          string             `json:"id"`
	SessionID   string             `json:"session_id"`
	Type        PositionType       `json:"type"`
	TradingType market.TradingType `json:"trading_type"`
	Shares      int                `json:"shares"`
	EntryPrice  float64            `json:"entry_price"`
	EntryDate   time.Time          `json:"entry_date"`
	Status      PositionStatus     `json:"status"`

	ExitPrice  *float64   `json:"exit_price,omitempty"`
	ExitDate   *time.Time `json:"exit_date,omitempty"`
	Profit     *float64   `json:"profit,omitempty"`
	ProfitRate *float64   `json:"profit_rate,omitempty"`
}

func (p Position) IsOpen() bool {
	return p.Status == Open
}

// Exposure converts an open position for the rule monitor.
func (p Position) Exposure() risk.Exposure {
	return risk.Exposure{
		PositionID: p.ID,
		Short:      p.Type == Short,
		Shares:     p.Shares,
		EntryPrice: p.EntryPrice,
	}
}

type Trade struct {
	ID                string      `json:"id"`
	SessionID         string      `json:"session_id"`
	PositionID        string      `json:"position_id"`
	Type              market.Side `json:"type"`
	IsShort           bool        `json:"is_short"`
	TradeDate         time.Time   `json:"trade_date"`
	Price             float64     `json:"price"`
	Shares            int         `json:"shares"`
	Fee               float64     `json:"fee"`
	Slippage          float64     `json:"slippage"`
	TotalCost         float64     `json:"total_cost"`
	Memo              string      `json:"memo"`
	CapitalAfterTrade float64     `json:"capital_after_trade"`
	// Seq orders same-day fills.
	Seq int `json:"seq"`
}

type RuleViolation struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	Timestamp   time.Time     `json:"timestamp"`
	PositionID  string        `json:"position_id"`
	Type        risk.Rule     `json:"type"`
	Description string        `json:"description"`
	Severity    risk.Severity `json:"severity"`
}

func (v RuleViolation) Key() risk.Key {
	return risk.Key{Scope: v.PositionID, Rule: v.Type}
}

// TerminalDay is the last CurrentDay value of the practice window.
func (s *Session) TerminalDay() int {
	return s.PeriodDays - 1
}

// CurrentIndex is the absolute bar index of the current day.
func (s *Session) CurrentIndex() int {
	return s.PracticeStartIndex + s.CurrentDay
}

// OpenPositions returns the open positions in entry order.
func (s *Session) OpenPositions() []Position {
	var out []Position
	for _, p := range s.Positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

// Exposures converts every open position for the rule monitor.
func (s *Session) Exposures() []risk.Exposure {
	var out []risk.Exposure
	for _, p := range s.Positions {
		if p.IsOpen() {
			out = append(out, p.Exposure())
		}
	}
	return out
}

// Position returns a pointer into s.Positions, or nil.
func (s *Session) Position(id string) *Position {
	for i := range s.Positions {
		if s.Positions[i].ID == id {
			return &s.Positions[i]
		}
	}
	return nil
}

// RecordedKeys rebuilds the dedup set from the violation history.
func (s *Session) RecordedKeys() risk.KeySet {
	keys := make(risk.KeySet, len(s.Violations))
	for _, v := range s.Violations {
		keys.Add(v.Key())
	}
	return keys
}

// NextSeq is the sequence number for the next trade.
func (s *Session) NextSeq() int {
	if n := len(s.Trades); n > 0 {
		return s.Trades[n-1].Seq + 1
	}
	return 1
}

// RecomputeStats refreshes TradeCount, WinCount and WinRate from closed
// positions. WinRate is 0 when nothing has closed.
func (s *Session) RecomputeStats() {
	closed, wins := 0, 0
	for _, p := range s.Positions {
		if p.Status != Closed {
			continue
		}
		closed++
		if p.Profit != nil && *p.Profit > 0 {
			wins++
		}
	}
	s.TradeCount = closed
	s.WinCount = wins
	s.WinRate = 0
	if closed > 0 {
		s.WinRate = float64(wins) / float64(closed) * 100
	}
	s.RuleViolationCount = len(s.Violations)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	c := *s
	c.MAPeriods = append([]int(nil), s.MAPeriods...)
	c.Trades = append([]Trade(nil), s.Trades...)
	c.Violations = append([]RuleViolation(nil), s.Violations...)
	c.CompletedAt = clonePtr(s.CompletedAt)
	c.LegacyPracticeStartDate = clonePtr(s.LegacyPracticeStartDate)

	c.Positions = make([]Position, len(s.Positions))
	for i, p := range s.Positions {
		p.ExitPrice = clonePtr(p.ExitPrice)
		p.ExitDate = clonePtr(p.ExitDate)
		p.Profit = clonePtr(p.Profit)
		p.ProfitRate = clonePtr(p.ProfitRate)
		c.Positions[i] = p
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
