package risk

import "fmt"

// Rule names one check of the rulebook.
type Rule string

const (
	StopLoss     Rule = "stop_loss"
	PositionSize Rule = "position_size"
	MaxPositions Rule = "max_positions"
	Leverage     Rule = "leverage"
)

type Severity string

const (
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// SessionScope is the scope of portfolio-wide violations.
const SessionScope = "session"

// Policy is the fixed risk rulebook. Percentages are whole numbers (10 means
// 10%).
type Policy struct {
	StopLossPct      float64 // 10
	MaxPositionPct   float64 // 30
	MaxOpenPositions int     // 3
	MaxLeverage      float64 // 2
}

func DefaultPolicy() Policy {
	return Policy{
		StopLossPct:      10,
		MaxPositionPct:   30,
		MaxOpenPositions: 3,
		MaxLeverage:      2,
	}
}

func (p Policy) Validate() error {
	if p.StopLossPct <= 0 {
		return fmt.Errorf("stop loss pct must be positive, got %v", p.StopLossPct)
	}
	if p.MaxPositionPct <= 0 {
		return fmt.Errorf("max position pct must be positive, got %v", p.MaxPositionPct)
	}
	if p.MaxOpenPositions <= 0 {
		return fmt.Errorf("max open positions must be positive, got %d", p.MaxOpenPositions)
	}
	if p.MaxLeverage <= 0 {
		return fmt.Errorf("max leverage must be positive, got %v", p.MaxLeverage)
	}
	return nil
}

// Exposure is an open position as the monitor sees it.
type Exposure struct {
	PositionID string
	Short      bool
	Shares     int
	EntryPrice float64
}

// Snapshot is the account state a check runs against. Price is the current
// bar close.
type Snapshot struct {
	Capital   float64
	Price     float64
	Positions []Exposure
}

// Key identifies a violation for deduplication: a position ID or
// SessionScope, plus the rule.
type Key struct {
	Scope string
	Rule  Rule
}

// KeySet is the set of keys already recorded for a session.
type KeySet map[Key]struct{}

func (s KeySet) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

func (s KeySet) Add(k Key) {
	s[k] = struct{}{}
}
