package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/swingsim/indicators"
	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/replay"
	"github.com/rustyeddy/swingsim/session"
	"github.com/rustyeddy/swingsim/sim"
)

const shellHelp = `commands:
  play                          start or resume playback
  pause                         stop playback
  next                          advance one bar (paused only)
  speed <seconds>               seconds per bar
  buy <shares> [spot|margin] <memo>
  short <shares> <memo>         margin short sale
  check <shares> [spot|margin]  pre-trade rule check for a buy
  close <position> <memo>       close by id or id suffix
  status                        capital, equity and open positions
  ma                            latest simple and exponential averages
  bars [daily|weekly|monthly] [n]  last n bars, aggregated
  retry                         retry a failed save
  quit`

// shell interprets one command line at a time against a session. Engine
// events are printed as they arrive, from whatever goroutine sends them.
type shell struct {
	eng   *sim.Engine
	ctl   *replay.Controller
	retry func() bool

	mu  sync.Mutex
	out io.Writer
}

var errQuit = errors.New("quit")

func newShell(eng *sim.Engine, ctl *replay.Controller, retry func() bool, out io.Writer) *shell {
	return &shell{eng: eng, ctl: ctl, retry: retry, out: out}
}

func (sh *shell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) OnEvent(ev sim.Event) {
	switch ev.Kind {
	case sim.EventAdvanced:
		bar := sh.eng.CurrentBar()
		_, last := sh.eng.Day()
		sh.printf("day %d/%d %s  close %.2f\n", ev.CurrentDay+1, last+1, bar.Date.Format(market.DateLayout), bar.Close)
	case sim.EventSyncFailed:
		sh.printf("warning: session not saved: %v (type retry)\n", ev.Err)
	}
	if ev.Kind == sim.EventStatusChanged && ev.Status == session.Completed {
		sh.printf("session completed\n")
	}
	for _, v := range ev.Changes.Violations {
		sh.printf("! %s %s: %s\n", v.Severity, v.Type, v.Description)
	}
}

// exec runs one line. It returns errQuit when the user asks to leave.
func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		sh.printf("%s\n", shellHelp)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "play":
		return sh.ctl.Play()
	case "pause":
		return sh.ctl.Pause()
	case "next", "n":
		_, err := sh.ctl.Next()
		return err
	case "speed":
		return sh.speed(args)
	case "buy":
		return sh.order(market.Buy, args, true)
	case "short":
		return sh.order(market.Sell, args, false)
	case "check":
		return sh.check(args)
	case "close":
		return sh.close(args)
	case "status", "s":
		sh.status()
		return nil
	case "ma":
		return sh.movingAverages()
	case "bars":
		return sh.bars(args)
	case "retry":
		if sh.retry == nil || !sh.retry() {
			sh.printf("nothing to retry\n")
		}
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func (sh *shell) speed(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: speed <seconds>")
	}
	sec, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("speed: %w", err)
	}
	return sh.ctl.SetSpeed(time.Duration(sec * float64(time.Second)))
}

// parseOrder reads "<shares> [spot|margin] <memo...>".
func parseOrder(args []string, allowType bool) (int, market.TradingType, string, error) {
	if len(args) < 1 {
		return 0, "", "", fmt.Errorf("missing share count")
	}
	shares, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", "", fmt.Errorf("shares: %w", err)
	}
	tt := market.Spot
	rest := args[1:]
	if allowType && len(rest) > 0 {
		if t, err := market.ParseTradingType(rest[0]); err == nil {
			tt, rest = t, rest[1:]
		}
	}
	return shares, tt, strings.Join(rest, " "), nil
}

func (sh *shell) order(side market.Side, args []string, allowType bool) error {
	shares, tt, memo, err := parseOrder(args, allowType)
	if err != nil {
		return err
	}
	if side == market.Sell {
		tt = market.Margin
	}

	cs, err := sh.eng.SubmitOrder(sim.OrderRequest{Side: side, TradingType: tt, Shares: shares, Memo: memo})
	if err != nil {
		return err
	}
	for _, t := range cs.Trades {
		sh.printf("filled %s %d @ %.2f  fee %.2f  slippage %.2f  total %.2f  capital %.2f\n",
			t.Type, t.Shares, t.Price, t.Fee, t.Slippage, t.TotalCost, t.CapitalAfterTrade)
	}
	for _, p := range cs.Positions {
		sh.printf("position %s opened\n", p.ID)
	}
	return nil
}

func (sh *shell) check(args []string) error {
	shares, tt, _, err := parseOrder(args, true)
	if err != nil {
		return err
	}
	vs, err := sh.eng.PreTradeCheck(sim.OrderRequest{Side: market.Buy, TradingType: tt, Shares: shares, Memo: "check"})
	if err != nil {
		return err
	}
	if len(vs) == 0 {
		sh.printf("no rule would be broken\n")
	}
	for _, v := range vs {
		sh.printf("! %s %s: %s\n", v.Severity, v.Rule, v.Msg)
	}
	return nil
}

func (sh *shell) close(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: close <position> <memo>")
	}
	id, err := sh.resolvePosition(args[0])
	if err != nil {
		return err
	}

	cs, err := sh.eng.ClosePosition(id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	for _, p := range cs.Positions {
		if p.Profit != nil && p.ProfitRate != nil {
			sh.printf("closed %s  profit %.2f (%.2f%%)\n", p.ID, *p.Profit, *p.ProfitRate)
		}
	}
	return nil
}

// resolvePosition accepts a full open-position id or a unique suffix of one.
func (sh *shell) resolvePosition(ref string) (string, error) {
	var match []string
	for _, p := range sh.eng.Snapshot().OpenPositions() {
		if p.ID == ref {
			return ref, nil
		}
		if strings.HasSuffix(p.ID, ref) {
			match = append(match, p.ID)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return ref, nil
	}
	return "", fmt.Errorf("%q matches %d open positions", ref, len(match))
}

func (sh *shell) status() {
	s := sh.eng.Snapshot()
	bar := sh.eng.CurrentBar()
	sh.printf("%s %s  %s  day %d/%d %s  close %.2f\n",
		s.Symbol, s.Name, s.Status, s.CurrentDay+1, s.PeriodDays, bar.Date.Format(market.DateLayout), bar.Close)
	sh.printf("capital %.2f  equity %.2f  trades %d  win %.1f%%  drawdown %.2f%%  violations %d\n",
		s.CurrentCapital, sh.eng.Equity(), s.TradeCount, s.WinRate, s.MaxDrawdown, s.RuleViolationCount)
	if sh.eng.Dirty() {
		sh.printf("warning: last save failed\n")
	}
	for _, p := range s.OpenPositions() {
		pnl, pct, err := sh.eng.Unrealized(p.ID)
		if err != nil {
			continue
		}
		sh.printf("  %s %-5s %-6s %5d @ %.2f  unrealized %.2f (%.2f%%)\n",
			p.ID, p.Type, p.TradingType, p.Shares, p.EntryPrice, pnl, pct)
	}
}

func (sh *shell) movingAverages() error {
	mas, err := sh.eng.MovingAverages()
	if err != nil {
		return err
	}
	periods := make([]int, 0, len(mas))
	for p := range mas {
		periods = append(periods, p)
	}
	sort.Ints(periods)

	if len(periods) == 0 {
		sh.printf("no moving averages configured\n")
		return nil
	}

	visible := sh.eng.VisibleBars()
	for _, p := range periods {
		vals := mas[p]
		if len(vals) == 0 || !vals[len(vals)-1].Valid {
			sh.printf("MA%d  n/a\n", p)
			continue
		}
		ema := indicators.NewEMA(p)
		for _, b := range visible {
			ema.Update(b)
		}
		sh.printf("MA%d  %.2f  EMA%d  %.2f\n", p, vals[len(vals)-1].V, p, ema.Value())
	}
	return nil
}

func (sh *shell) bars(args []string) error {
	tf, n := indicators.Daily, 5
	for _, a := range args {
		if v, err := strconv.Atoi(a); err == nil {
			n = v
			continue
		}
		tf = indicators.Timeframe(strings.ToLower(a))
	}

	bars, err := indicators.Aggregate(sh.eng.VisibleBars(), tf)
	if err != nil {
		return err
	}
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	for _, b := range bars {
		sh.printf("%s  O %.2f  H %.2f  L %.2f  C %.2f  V %.0f\n",
			b.Date.Format(market.DateLayout), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	return nil
}
