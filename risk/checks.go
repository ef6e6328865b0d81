package risk

import "fmt"

// Violation is a candidate rule breach. Recording it is the caller's job.
type Violation struct {
	Key
	Severity Severity
	Msg      string
}

type checker struct {
	p   Policy
	out []Violation
}

func (c *checker) add(scope string, rule Rule, sev Severity, msg string) {
	c.out = append(c.out, Violation{Key: Key{Scope: scope, Rule: rule}, Severity: sev, Msg: msg})
}

func (c *checker) stopLoss(e Exposure, price float64) {
	_, pct := Unrealized(e, price)
	if pct < -c.p.StopLossPct {
		c.add(e.PositionID, StopLoss, Critical,
			fmt.Sprintf("unrealized loss %.2f%% breaches stop-loss %.2f%%", pct, c.p.StopLossPct))
	}
}

func (c *checker) positionSize(e Exposure, price, capital float64) {
	pct := SizePct(e.Shares, price, capital)
	if pct > c.p.MaxPositionPct {
		c.add(e.PositionID, PositionSize, Warning,
			fmt.Sprintf("position is %.2f%% of capital, max %.2f%%", pct, c.p.MaxPositionPct))
	}
}

func (c *checker) portfolio(positions []Exposure, price, capital float64) {
	if n := len(positions); n > c.p.MaxOpenPositions {
		c.add(SessionScope, MaxPositions, Warning,
			fmt.Sprintf("open positions %d > max %d", n, c.p.MaxOpenPositions))
	}
	if lev := LeverageRatio(positions, price, capital); lev > c.p.MaxLeverage {
		c.add(SessionScope, Leverage, Critical,
			fmt.Sprintf("leverage %.2fx exceeds max %.2fx", lev, c.p.MaxLeverage))
	}
}

// Evaluate runs every check against the snapshot: stop-loss and size per
// position, then open-count and leverage once for the whole session.
func Evaluate(p Policy, s Snapshot) []Violation {
	c := &checker{p: p}
	for _, e := range s.Positions {
		c.stopLoss(e, s.Price)
		c.positionSize(e, s.Price, s.Capital)
	}
	c.portfolio(s.Positions, s.Price, s.Capital)
	return c.out
}

// PreTrade projects the snapshot with next added and returns advisory
// violations for size, open count and leverage. Stop-loss is not checked
// since a fresh position has no open loss.
func PreTrade(p Policy, s Snapshot, next Exposure) []Violation {
	c := &checker{p: p}
	c.positionSize(next, s.Price, s.Capital)

	projected := make([]Exposure, 0, len(s.Positions)+1)
	projected = append(projected, s.Positions...)
	projected = append(projected, next)
	c.portfolio(projected, s.Price, s.Capital)
	return c.out
}

// Filter drops candidates whose key is already recorded, and repeats within
// candidates. recorded is not modified.
func Filter(candidates []Violation, recorded KeySet) []Violation {
	seen := KeySet{}
	var out []Violation
	for _, v := range candidates {
		if recorded.Has(v.Key) || seen.Has(v.Key) {
			continue
		}
		seen.Add(v.Key)
		out = append(out, v)
	}
	return out
}
