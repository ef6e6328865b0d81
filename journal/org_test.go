package journal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()
	s := sampleSession("01HV0000000000000000000001", "alice")
	trade := s.Trades[0]

	result := FormatTradeOrg(trade)

	assert.True(t, strings.HasPrefix(result, "** 2024-03-11 buy 100 @ 1000.00 (00001-t1)\n"))
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":TRADE_ID: "+trade.ID)
	assert.Contains(t, result, ":FEE: 100.00")
	assert.Contains(t, result, ":SLIPPAGE: 50.00")
	assert.Contains(t, result, ":TOTAL_COST: 100150.00")
	assert.Contains(t, result, ":SHORT: false")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** Thesis\n- breakout\n")
	assert.Contains(t, result, "*** Review")
}

func TestFormatTradeOrgShort(t *testing.T) {
	t.Parallel()
	s := sampleSession("s1", "alice")

	result := FormatTradeOrg(s.Trades[2])
	assert.Contains(t, result, "sell (short) 200 @ 1190.00")
	assert.Contains(t, result, ":SHORT: true")
}

func TestFormatSessionOrg(t *testing.T) {
	t.Parallel()
	s := sampleSession("s1", "alice")

	result := FormatSessionOrg(s)

	assert.True(t, strings.HasPrefix(result, "* Session: 7203 Toyota (s1)\n"))
	assert.Contains(t, result, ":DAY: 5/10")
	assert.Contains(t, result, ":WIN_RATE: 100.00")
	assert.Equal(t, 3, strings.Count(result, "*** Thesis"))
	assert.Contains(t, result, "** Rule violations")
	assert.Contains(t, result, "| 2024-03-14 | position_size | warning | s1-p2 | position is 23% of capital |")

	s.Violations = nil
	assert.NotContains(t, FormatSessionOrg(s), "Rule violations")
}
