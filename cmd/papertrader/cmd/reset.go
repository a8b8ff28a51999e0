package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all history and restore the initial capital",
	Long: `Reset the account: stop automated trading, delete all positions,
trades and equity history, and restore cash to the configured initial
capital. This is destructive and cannot be undone.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.ctrl.Reset(); err != nil {
		return err
	}

	fmt.Printf("account reset, cash restored to %.2f\n", a.cfg.Account.InitialCapital)
	return nil
}
