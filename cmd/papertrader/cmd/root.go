package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "An automated paper trading simulator",
	Long: `Papertrader simulates automated trading against a single instrument.

It periodically samples a market price, asks a pluggable strategy for a
buy/sell/hold decision, applies the decision against a cash-and-position
ledger, and records the resulting trade and equity history in SQLite.

Run "papertrader serve" to start the HTTP service, or "papertrader tick"
to execute a single tick from the command line.`,
}

var cfgFile string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "path to config file (YAML or JSON)")
}
