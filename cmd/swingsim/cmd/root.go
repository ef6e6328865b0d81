package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swingsim",
	Short: "A swing-trading practice simulator",
	Long: `Swingsim replays real daily price history one bar at a time so you can
practice swing trades without risking money.

It provides tools for:
  - Starting practice sessions on a random symbol and window
  - Buying, short selling and closing with fees and slippage
  - Rule checks for stop loss, position size, position count and leverage
  - Reviewing sessions as CSV or Org-mode journals
  - Converting CSV price files to Parquet`,
	SilenceUsage: true,
}

var cfgFile string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (defaults apply when empty)")
}
