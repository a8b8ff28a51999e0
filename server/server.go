// Package server exposes the trader's administrative operations over
// HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/control"
	"github.com/rustyeddy/papertrader/journal"
)

// Config holds server dependencies
type Config struct {
	Port       int
	Log        zerolog.Logger
	Store      *journal.SQLite
	Controller *control.Controller
}

// Server is the HTTP front for the controller and the read-only store
// queries.
type Server struct {
	router *chi.Mux
	server *http.Server
	store  *journal.SQLite
	ctrl   *control.Controller
	log    zerolog.Logger
}

// New creates the HTTP server with middleware and routes configured.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  cfg.Store,
		ctrl:   cfg.Controller,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Get("/tick", s.handleTick)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/strategy", s.handleGetStrategy)
	s.router.Get("/portfolio", s.handlePortfolio)
	s.router.Get("/trades", s.handleTrades)
	s.router.Get("/equity", s.handleEquity)
	s.router.Get("/refresh_prices", s.handleRefreshPrices)

	s.router.Post("/start", s.handleStart)
	s.router.Post("/stop", s.handleStop)
	s.router.Post("/reset", s.handleReset)
	s.router.Post("/set_cash/{amount}", s.handleSetCash)
	s.router.Post("/set_strategy/{name}", s.handleSetStrategy)
	s.router.Post("/set_interval/{minutes}", s.handleSetInterval)
}

// Start begins serving. Blocks until shutdown or failure.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router exposes the chi mux, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
