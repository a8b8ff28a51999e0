package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/control"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/pkg/logger"
	"github.com/rustyeddy/papertrader/pricefeed"
)

// app wires config, store, feed, ledger and controller together for the
// CLI commands.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *journal.SQLite
	ctrl  *control.Controller
}

func buildApp() (*app, error) {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	store, err := journal.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// First boot seeds the singleton run state; later boots keep it.
	err = store.Bootstrap(journal.RunState{
		Running:         false,
		IntervalMinutes: cfg.Trading.IntervalMinutes,
		Strategy:        cfg.Trading.Strategy,
		Cash:            cfg.Account.InitialCapital,
		LastHeartbeat:   time.Now().UTC(),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("bootstrap run state: %w", err)
	}

	var feed pricefeed.Source
	switch cfg.Feed.Type {
	case "rest":
		feed = pricefeed.NewRESTFeed(cfg.Feed.URL, time.Duration(cfg.Feed.TimeoutSec)*time.Second)
	default:
		feed = pricefeed.NewRandomWalk(cfg.Feed.StartPrice, cfg.Feed.Volatility)
	}

	book, err := ledger.New(store, cfg.Trading.Symbol, cfg.Account.BrokerageRate, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	ctrl, err := control.New(store, book, feed, control.Config{
		InitialCapital: cfg.Account.InitialCapital,
		Quantity:       cfg.Trading.Quantity,
		FetchTimeout:   time.Duration(cfg.Feed.TimeoutSec) * time.Second,
	}, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: store, ctrl: ctrl}, nil
}

func (a *app) close() {
	a.ctrl.Close()
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("Failed to close store")
	}
}
