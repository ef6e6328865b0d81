package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swingsim/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Export session journals for review",
	Long: `Export a session's trades and rule violations.

Subcommands:
  export - Write trades and violations as CSV files
  org    - Print an Org-mode review document

Examples:
  swingsim journal export <id>
  swingsim journal org <id> > review.org`,
}

var journalExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write trades and violations as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalExport,
}

var journalOrgCmd = &cobra.Command{
	Use:   "org <id>",
	Short: "Print the session as an Org-mode document",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrg,
}

var journalExportDir string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalExportCmd, journalOrgCmd)

	journalExportCmd.Flags().StringVarP(&journalExportDir, "dir", "d", "", "output directory (defaults to journal.export_dir)")
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.store.LoadSession(cmd.Context(), a.cfg.Account.Owner, args[0])
	if err != nil {
		return err
	}

	dir := journalExportDir
	if dir == "" {
		dir = a.cfg.Journal.ExportDir
	}
	paths, err := journal.ExportCSV(dir, s)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", p)
	}
	return nil
}

func runJournalOrg(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.store.LoadSession(cmd.Context(), a.cfg.Account.Owner, args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatSessionOrg(s))
	return nil
}
