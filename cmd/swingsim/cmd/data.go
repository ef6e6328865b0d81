package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swingsim/market"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage price data files",
}

var dataConvertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a directory of CSV bars to Parquet",
	Long: `Read every <SYMBOL>.csv in the input directory and write <SYMBOL>.parquet
to the output directory. The symbols.csv name list is copied along.

Example:
  swingsim data convert --in data/csv --out data/parquet`,
	Args: cobra.NoArgs,
	RunE: runDataConvert,
}

var (
	dataIn  string
	dataOut string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataConvertCmd)

	dataConvertCmd.Flags().StringVar(&dataIn, "in", "", "directory of CSV files (required)")
	dataConvertCmd.Flags().StringVar(&dataOut, "out", "", "directory for Parquet files (required)")
	_ = dataConvertCmd.MarkFlagRequired("in")
	_ = dataConvertCmd.MarkFlagRequired("out")
}

func runDataConvert(cmd *cobra.Command, args []string) error {
	n, err := convertDir(cmd, dataIn, dataOut)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Converted %d symbols to %s\n", n, dataOut)
	return nil
}

func convertDir(cmd *cobra.Command, in, out string) (int, error) {
	ctx := cmd.Context()
	if err := os.MkdirAll(out, 0o755); err != nil {
		return 0, err
	}
	src := market.NewCSVProvider(in)
	symbols, err := src.Symbols(ctx)
	if err != nil {
		return 0, err
	}

	for _, inst := range symbols {
		bars, err := src.FetchPrices(ctx, inst.Symbol, time.Time{}, time.Time{})
		if err != nil {
			return 0, fmt.Errorf("convert %s: %w", inst.Symbol, err)
		}
		path := filepath.Join(out, inst.Symbol+".parquet")
		if err := market.WriteBarsParquet(path, bars); err != nil {
			return 0, fmt.Errorf("convert %s: %w", inst.Symbol, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d bars\n", inst.Symbol, len(bars))
	}

	names, err := os.ReadFile(filepath.Join(in, market.NamesFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return 0, err
	default:
		if err := os.WriteFile(filepath.Join(out, market.NamesFile), names, 0o644); err != nil {
			return 0, err
		}
	}
	return len(symbols), nil
}
