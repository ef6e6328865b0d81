package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/session"
	"github.com/rustyeddy/swingsim/sim"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, list, show and delete practice sessions",
	Long: `Manage practice sessions stored in the journal database.

Examples:
  swingsim session new --name "week 1"
  swingsim session new --symbol 7203 --seed 42
  swingsim session list
  swingsim session show <id>
  swingsim session delete <id>`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a session on a random window of real history",
	Args:  cobra.NoArgs,
	RunE:  runSessionNew,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's statistics and positions",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session with its trades and violations",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var (
	sessionName   string
	sessionSymbol string
	sessionSeed   int64
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionShowCmd, sessionDeleteCmd)

	sessionNewCmd.Flags().StringVarP(&sessionName, "name", "n", "", "session name (defaults to the instrument name)")
	sessionNewCmd.Flags().StringVarP(&sessionSymbol, "symbol", "s", "", "practice this symbol instead of a random one")
	sessionNewCmd.Flags().Int64Var(&sessionSeed, "seed", 0, "random seed (0 uses the clock)")
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	seed := sessionSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	o := market.NewOriginator(a.catalog(), rand.New(rand.NewSource(seed)))

	ctx := cmd.Context()
	period, hist := a.cfg.Session.PeriodDays, a.cfg.Session.HistoricalDays
	var w market.Window
	if sessionSymbol != "" {
		w, err = o.PickSymbol(ctx, sessionSymbol, period, hist)
	} else {
		w, err = o.Pick(ctx, period, hist)
	}
	if err != nil {
		return fmt.Errorf("pick window: %w", err)
	}

	js := a.syncer()
	e, err := sim.NewSession(a.cfg.SessionRequest(sessionName), w, a.engineOptions(js))
	if err != nil {
		_ = js.Close()
		return err
	}
	if err := js.Close(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s := e.Snapshot()
	bar := e.CurrentBar()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created session %s\n", s.ID)
	fmt.Fprintf(out, "  %s %s\n", s.Symbol, s.Name)
	fmt.Fprintf(out, "  %d practice days starting %s, %d days of history\n",
		s.PeriodDays, bar.Date.Format(market.DateLayout), s.PracticeStartIndex)
	fmt.Fprintf(out, "  Capital: %.2f\n", s.InitialCapital)
	fmt.Fprintf(out, "\nPlay it with:\n  swingsim play %s\n", s.ID)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.store.ListSessions(cmd.Context(), a.cfg.Account.Owner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "no sessions")
		return nil
	}
	fmt.Fprintf(out, "%-26s  %-8s  %-10s  %9s  %14s  %6s  %4s\n", "ID", "SYMBOL", "STATUS", "DAY", "CAPITAL", "WIN%", "VIOL")
	for _, s := range list {
		fmt.Fprintf(out, "%-26s  %-8s  %-10s  %4d/%-4d  %14.2f  %6.1f  %4d\n",
			s.ID, s.Symbol, s.Status, s.CurrentDay+1, s.PeriodDays, s.CurrentCapital, s.WinRate, s.RuleViolationCount)
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.store.LoadSession(cmd.Context(), a.cfg.Account.Owner, args[0])
	if err != nil {
		return err
	}
	printSession(cmd.OutOrStdout(), s)
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteSession(cmd.Context(), a.cfg.Account.Owner, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted session %s\n", args[0])
	return nil
}

func printSession(out io.Writer, s *session.Session) {
	fmt.Fprintf(out, "Session %s  %s %s\n", s.ID, s.Symbol, s.Name)
	fmt.Fprintf(out, "  Status:     %s (day %d/%d)\n", s.Status, s.CurrentDay+1, s.PeriodDays)
	fmt.Fprintf(out, "  Capital:    %.2f (started %.2f)\n", s.CurrentCapital, s.InitialCapital)
	fmt.Fprintf(out, "  Trades:     %d closed, win rate %.1f%%\n", s.TradeCount, s.WinRate)
	fmt.Fprintf(out, "  Drawdown:   %.2f%%\n", s.MaxDrawdown)
	fmt.Fprintf(out, "  Violations: %d\n", s.RuleViolationCount)

	if len(s.Positions) == 0 {
		return
	}
	fmt.Fprintln(out, "\n  Positions:")
	for _, p := range s.Positions {
		line := fmt.Sprintf("    %s  %-5s %-6s %5d @ %.2f  %s",
			p.ID, p.Type, p.TradingType, p.Shares, p.EntryPrice, p.Status)
		if p.Profit != nil && p.ProfitRate != nil {
			line += fmt.Sprintf("  profit %.2f (%.2f%%)", *p.Profit, *p.ProfitRate)
		}
		fmt.Fprintln(out, line)
	}
}
