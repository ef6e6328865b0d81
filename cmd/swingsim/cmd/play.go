package cmd

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swingsim/replay"
	"github.com/rustyeddy/swingsim/session"
	"github.com/rustyeddy/swingsim/sim"
)

var playCmd = &cobra.Command{
	Use:   "play <id>",
	Short: "Open a session and trade it interactively",
	Long: `Open a stored session and drive it from the keyboard. Playback advances
one bar per tick at the session speed; placing an order pauses it.

Type help at the prompt for the command list.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	s, err := a.store.LoadSession(ctx, a.cfg.Account.Owner, args[0])
	if err != nil {
		return err
	}
	bars, err := sim.LoadBars(ctx, a.catalog(), s)
	if err != nil {
		return err
	}

	js := a.syncer()
	defer func() {
		if err := js.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: last save failed: %v\n", err)
		}
	}()

	e, err := sim.Open(s, bars, a.engineOptions(js))
	if err != nil {
		return err
	}
	ctl := replay.New(e, replay.RealScheduler{}, a.log)
	defer ctl.Close()

	stop := a.serveMetrics()
	defer stop()

	out := cmd.OutOrStdout()
	sh := newShell(e, ctl, js.Retry, out)
	unsub := e.Subscribe(sh)
	defer unsub()

	sh.status()
	sh.printf("type help for commands\n")

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		sh.printf("> ")
		if !in.Scan() {
			break
		}
		err := sh.exec(in.Text())
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			sh.printf("error: %v\n", err)
		}
	}

	if e.Status() == session.Playing {
		if err := ctl.Pause(); err != nil {
			return err
		}
	}
	return in.Err()
}
