package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trading service with its HTTP API",
	Long: `Start the paper trading service.

If automated trading was running when the process last exited, the
scheduler resumes at the persisted interval without manual intervention.

Example:
  papertrader serve -f papertrader.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info().
		Str("symbol", a.cfg.Trading.Symbol).
		Str("db", a.cfg.Store.DBPath).
		Msg("Starting paper trader")

	// Crash-recovery path: re-establish the scheduled job if the
	// persisted state says trading is active.
	if err := a.ctrl.ResumeOnStart(); err != nil {
		return fmt.Errorf("resume on start: %w", err)
	}

	srv := server.New(server.Config{
		Port:       a.cfg.Server.Port,
		Log:        a.log,
		Store:      a.store,
		Controller: a.ctrl,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("Server forced to shutdown")
	}

	return nil
}
