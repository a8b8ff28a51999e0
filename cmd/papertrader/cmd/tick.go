package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run the tick pipeline once and exit",
	Long: `Execute a single tick: fetch the current price, ask the active
strategy for a signal, apply it to the ledger and record an equity
snapshot. The running flag and any scheduled job are untouched.`,
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.ctrl.Tick(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("price: %.2f  action: %s  executed: %v  equity: %.2f\n",
		res.Price, res.Action, res.Executed, res.Equity.TotalEquity)
	return nil
}
