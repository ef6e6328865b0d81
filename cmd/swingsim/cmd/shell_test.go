package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/replay"
	"github.com/rustyeddy/swingsim/session"
	"github.com/rustyeddy/swingsim/sim"
)

type heldTimer struct{}

func (heldTimer) Stop() bool { return true }

// heldScheduler never fires; the shell tests step bars with next.
type heldScheduler struct{}

func (heldScheduler) AfterFunc(time.Duration, func()) replay.Timer { return heldTimer{} }

func newTestShell(t *testing.T, closes ...float64) (*shell, *sim.Engine, *bytes.Buffer) {
	t.Helper()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Symbol: "A", Date: start.AddDate(0, 0, i), Close: c}
	}
	e, err := sim.NewSession(sim.SessionRequest{
		OwnerID:        "o",
		InitialCapital: 1_000_000,
		PeriodDays:     len(closes),
		PlaybackSpeed:  time.Second,
		MAPeriods:      []int{2},
	}, market.Window{Instrument: market.Instrument{Symbol: "A", Name: "Alpha"}, Bars: bars}, sim.DefaultOptions())
	require.NoError(t, err)

	ctl := replay.New(e, heldScheduler{}, zerolog.Nop())
	t.Cleanup(ctl.Close)

	var buf bytes.Buffer
	sh := newShell(e, ctl, nil, &buf)
	e.Subscribe(sh)
	return sh, e, &buf
}

func TestShellBuyAdvanceClose(t *testing.T) {
	t.Parallel()
	sh, e, buf := newTestShell(t, 1000, 1200, 1100, 1050)

	require.NoError(t, sh.exec("buy 100 breakout"))
	assert.Contains(t, buf.String(), "filled buy 100 @ 1000.00  fee 100.00  slippage 50.00  total 100150.00  capital 899850.00")

	buf.Reset()
	require.NoError(t, sh.exec("next"))
	assert.Contains(t, buf.String(), "day 2/4 2024-05-02  close 1200.00")

	buf.Reset()
	sh.exec("status")
	assert.Contains(t, buf.String(), "capital 899850.00")
	assert.Contains(t, buf.String(), "unrealized")

	open := e.Snapshot().OpenPositions()
	require.Len(t, open, 1)
	suffix := open[0].ID[len(open[0].ID)-6:]

	buf.Reset()
	require.NoError(t, sh.exec("close "+suffix+" hit target"))
	assert.Contains(t, buf.String(), "profit 19820.00 (19.82%)")
	assert.Empty(t, e.Snapshot().OpenPositions())
}

func TestShellShortAndMargin(t *testing.T) {
	t.Parallel()
	sh, e, buf := newTestShell(t, 1000, 900, 950)

	require.NoError(t, sh.exec("short 100 fade the gap"))
	assert.Contains(t, buf.String(), "filled sell 100 @ 1000.00")

	require.NoError(t, sh.exec("buy 100 margin pairs"))
	s := e.Snapshot()
	require.Len(t, s.Positions, 2)
	assert.Equal(t, session.Short, s.Positions[0].Type)
	assert.Equal(t, market.Margin, s.Positions[1].TradingType)
	assert.Equal(t, "pairs", s.Trades[1].Memo)
}

func TestShellCommands(t *testing.T) {
	t.Parallel()
	sh, e, buf := newTestShell(t, 10, 11, 12)

	assert.ErrorIs(t, sh.exec("quit"), errQuit)
	assert.NoError(t, sh.exec(""))
	assert.Error(t, sh.exec("bogus"))
	assert.Error(t, sh.exec("buy lots memo"))
	assert.ErrorIs(t, sh.exec("buy 150 odd lot"), session.ErrValidation)
	assert.Error(t, sh.exec("close"))
	assert.ErrorIs(t, sh.exec("close nope memo"), session.ErrValidation)

	require.NoError(t, sh.exec("speed 0.5"))
	assert.Equal(t, 500*time.Millisecond, e.PlaybackSpeed())
	assert.Error(t, sh.exec("speed 0"))

	require.NoError(t, sh.exec("play"))
	assert.Equal(t, session.Playing, e.Status())
	assert.ErrorIs(t, sh.exec("next"), session.ErrInvalidOperation)
	require.NoError(t, sh.exec("pause"))

	buf.Reset()
	require.NoError(t, sh.exec("next"))
	require.NoError(t, sh.exec("ma"))
	assert.Contains(t, buf.String(), "MA2  10.50")

	buf.Reset()
	require.NoError(t, sh.exec("check 100"))
	assert.Contains(t, buf.String(), "no rule would be broken")

	buf.Reset()
	require.NoError(t, sh.exec("retry"))
	assert.Contains(t, buf.String(), "nothing to retry")

	buf.Reset()
	require.NoError(t, sh.exec("help"))
	assert.Contains(t, buf.String(), "short <shares> <memo>")
}

func TestShellReportsCompletion(t *testing.T) {
	t.Parallel()
	sh, e, buf := newTestShell(t, 10, 11)

	require.NoError(t, sh.exec("next"))
	require.NoError(t, sh.exec("next"))
	assert.Equal(t, session.Completed, e.Status())
	assert.Contains(t, buf.String(), "session completed")
}

func TestShellBarsAndAverages(t *testing.T) {
	t.Parallel()
	sh, _, buf := newTestShell(t, 1000, 1200, 1100, 1050)

	require.NoError(t, sh.exec("next"))
	require.NoError(t, sh.exec("next"))

	buf.Reset()
	require.NoError(t, sh.exec("ma"))
	assert.Contains(t, buf.String(), "MA2  1150.00  EMA2  1100.00")

	buf.Reset()
	require.NoError(t, sh.exec("bars 2"))
	out := buf.String()
	assert.NotContains(t, out, "2024-05-01")
	assert.Contains(t, out, "2024-05-02")
	assert.Contains(t, out, "2024-05-03")
	assert.NotContains(t, out, "2024-05-04")

	buf.Reset()
	require.NoError(t, sh.exec("bars weekly"))
	assert.Contains(t, buf.String(), "2024-05-01  O 0.00  H 0.00  L 0.00  C 1100.00")

	assert.Error(t, sh.exec("bars yearly"))
}
