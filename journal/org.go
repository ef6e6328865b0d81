package journal

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/pkg/id"
	"github.com/rustyeddy/swingsim/session"
)

// FormatTradeOrg renders one fill as an Org-mode block for a trading
// journal. Structured facts go in a PROPERTIES drawer; the memo seeds the
// Thesis heading.
func FormatTradeOrg(t session.Trade) string {
	side := string(t.Type)
	if t.IsShort {
		side += " (short)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "** %s %s %d @ %.2f (%s)\n",
		t.TradeDate.UTC().Format(market.DateLayout), side, t.Shares, t.Price, id.Short(t.ID, 8))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":POSITION_ID: %s\n", t.PositionID)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Type)
	fmt.Fprintf(&b, ":SHORT: %t\n", t.IsShort)
	fmt.Fprintf(&b, ":SHARES: %d\n", t.Shares)
	fmt.Fprintf(&b, ":PRICE: %.2f\n", t.Price)
	fmt.Fprintf(&b, ":FEE: %.2f\n", t.Fee)
	fmt.Fprintf(&b, ":SLIPPAGE: %.2f\n", t.Slippage)
	fmt.Fprintf(&b, ":TOTAL_COST: %.2f\n", t.TotalCost)
	fmt.Fprintf(&b, ":CAPITAL_AFTER: %.2f\n", t.CapitalAfterTrade)
	b.WriteString(":END:\n\n")
	fmt.Fprintf(&b, "*** Thesis\n- %s\n\n", t.Memo)
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatSessionOrg renders a session summary followed by every trade and
// a table of rule violations.
func FormatSessionOrg(s *session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "* Session: %s %s (%s)\n", s.Symbol, s.Name, id.Short(s.ID, 8))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", s.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", s.Symbol)
	fmt.Fprintf(&b, ":STATUS: %s\n", s.Status)
	fmt.Fprintf(&b, ":DAY: %d/%d\n", s.CurrentDay+1, s.PeriodDays)
	fmt.Fprintf(&b, ":INITIAL_CAPITAL: %.2f\n", s.InitialCapital)
	fmt.Fprintf(&b, ":CURRENT_CAPITAL: %.2f\n", s.CurrentCapital)
	fmt.Fprintf(&b, ":TRADES: %d\n", s.TradeCount)
	fmt.Fprintf(&b, ":WIN_RATE: %.2f\n", s.WinRate)
	fmt.Fprintf(&b, ":MAX_DRAWDOWN: %.2f\n", s.MaxDrawdown)
	fmt.Fprintf(&b, ":VIOLATIONS: %d\n", s.RuleViolationCount)
	b.WriteString(":END:\n")

	for _, t := range s.Trades {
		b.WriteString("\n")
		b.WriteString(FormatTradeOrg(t))
	}

	if len(s.Violations) > 0 {
		b.WriteString("\n** Rule violations\n")
		b.WriteString("| date | rule | severity | position | description |\n")
		b.WriteString("|------+------+----------+----------+-------------|\n")
		for _, v := range s.Violations {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				v.Timestamp.UTC().Format(market.DateLayout), v.Type, v.Severity,
				id.Short(v.PositionID, 8), strings.ReplaceAll(v.Description, "|", "/"))
		}
	}
	return b.String()
}
