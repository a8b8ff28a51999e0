package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustyeddy/papertrader/control"
	"github.com/rustyeddy/papertrader/pricefeed"
	"github.com/rustyeddy/papertrader/strategy"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, control.ErrInvalidInterval),
		errors.Is(err, strategy.ErrUnknown):
		status = http.StatusBadRequest
	case errors.Is(err, pricefeed.ErrUnavailable):
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /tick — run the pipeline once, independent of the scheduler.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.Tick(r.Context())
	if err != nil && !errors.Is(err, pricefeed.ErrUnavailable) {
		s.writeError(w, err)
		return
	}

	out := map[string]any{
		"price":    res.Price,
		"action":   string(res.Action),
		"executed": res.Executed,
		"message":  res.Message,
		"equity":   res.Equity.TotalEquity,
	}
	if errors.Is(err, pricefeed.ErrUnavailable) {
		// Equity was still snapshotted at the last known marks.
		s.writeJSON(w, http.StatusBadGateway, out)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Status()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"cash":             st.Cash,
		"is_running":       st.Running,
		"interval_minutes": st.IntervalMinutes,
		"current_strategy": st.Strategy,
		"last_heartbeat":   st.LastHeartbeat.Format(time.RFC3339),
	})
}

// GET /strategy
func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Status()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"current_strategy": st.Strategy,
		"available":        strategy.Names(),
	})
}

// GET /portfolio
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListPositions()
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(positions))
	for _, p := range positions {
		out = append(out, map[string]any{
			"symbol":         p.Symbol,
			"quantity":       p.Quantity,
			"avg_price":      p.AvgPrice,
			"current_price":  p.MarkPrice,
			"unrealized_pnl": p.UnrealizedPL(),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /trades?limit=N — newest first.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	trades, err := s.store.ListTrades(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(trades))
	for _, t := range trades {
		row := map[string]any{
			"trade_id":  t.TradeID,
			"timestamp": t.Time.Format(time.RFC3339),
			"symbol":    t.Symbol,
			"side":      string(t.Side),
			"quantity":  t.Quantity,
			"price":     t.Price,
			"brokerage": t.Brokerage,
		}
		if t.RealizedPL != nil {
			row["realized_pnl"] = *t.RealizedPL
		}
		out = append(out, row)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /equity — oldest first.
func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.ListEquity()
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(history))
	for _, e := range history {
		out = append(out, map[string]any{
			"timestamp":    e.Time.Format(time.RFC3339),
			"total_equity": e.TotalEquity,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /refresh_prices
func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RefreshPrices(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "prices refreshed"})
}

// POST /start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "trading started"})
}

// POST /stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "trading stopped"})
}

// POST /reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reset(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "account reset"})
}

// POST /set_cash/{amount}
func (s *Server) handleSetCash(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(chi.URLParam(r, "amount"), 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}
	if err := s.ctrl.SetCash(amount); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"message": "cash updated", "cash": amount})
}

// POST /set_strategy/{name}
func (s *Server) handleSetStrategy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.ctrl.SetStrategy(name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "strategy changed", "strategy": name})
}

// POST /set_interval/{minutes}
func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(chi.URLParam(r, "minutes"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid interval"})
		return
	}
	if err := s.ctrl.SetInterval(minutes); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"message": "interval updated", "interval_minutes": minutes})
}
