// Package ledger converts trading signals into consistent mutations of
// cash, position and trade history.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/pkg/id"
)

var (
	// ErrInsufficientFunds rejects a BUY whose total cost exceeds cash.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientPosition rejects a SELL of more than is held.
	ErrInsufficientPosition = errors.New("ledger: insufficient position")
)

// closeEpsilon decides when a position counts as fully closed. Exact
// float equality is fragile after repeated partial sells.
const closeEpsilon = 1e-9

// Ledger owns the cash balance and the position for the traded symbol.
// Every mutation runs under the mutex and inside one SQLite transaction,
// so a concurrent manual tick and a scheduled tick cannot interleave
// into an inconsistent cash/position state.
type Ledger struct {
	mu     sync.Mutex
	store  *journal.SQLite
	symbol string
	rate   float64 // brokerage, fraction of gross value per side
	cash   float64 // mirrors the persisted run_state.cash
	log    zerolog.Logger
}

// Result describes one executed order.
type Result struct {
	TradeID    string
	Side       journal.Side
	Quantity   float64
	Price      float64
	Brokerage  float64
	GrossValue float64
	RealizedPL *float64
	Cash       float64
}

// New creates a ledger for symbol, loading the cash balance persisted in
// run_state.
func New(store *journal.SQLite, symbol string, brokerageRate float64, log zerolog.Logger) (*Ledger, error) {
	st, err := store.GetRunState()
	if err != nil {
		return nil, fmt.Errorf("ledger: load run state: %w", err)
	}

	return &Ledger{
		store:  store,
		symbol: symbol,
		rate:   brokerageRate,
		cash:   st.Cash,
		log:    log.With().Str("component", "ledger").Logger(),
	}, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Symbol returns the traded symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// SetCash overwrites the cash balance, persisting it first.
func (l *Ledger) SetCash(amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.store.WithTx(func(tx *journal.Tx) error {
		return tx.SaveCash(amount)
	})
	if err != nil {
		return err
	}
	l.cash = amount
	return nil
}

// Execute applies one market order at the given fill price. All writes
// (cash, position, trade row) commit as one unit; a rejected order
// leaves everything untouched.
func (l *Ledger) Execute(side journal.Side, quantity, price float64) (Result, error) {
	if quantity <= 0 {
		return Result{}, fmt.Errorf("ledger: quantity must be positive, got %v", quantity)
	}
	if price <= 0 {
		return Result{}, fmt.Errorf("ledger: price must be positive, got %v", price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	gross := quantity * price
	fee := gross * l.rate
	now := time.Now().UTC()

	res := Result{
		TradeID:    id.New(),
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Brokerage:  fee,
		GrossValue: gross,
	}

	var newCash float64

	err := l.store.WithTx(func(tx *journal.Tx) error {
		pos, err := tx.GetPosition(l.symbol)
		if err != nil {
			return err
		}

		switch side {
		case journal.Buy:
			totalCost := gross + fee
			if l.cash < totalCost {
				return ErrInsufficientFunds
			}
			newCash = l.cash - totalCost

			if pos != nil {
				newQty := pos.Quantity + quantity
				pos.AvgPrice = (pos.AvgPrice*pos.Quantity + gross) / newQty
				pos.Quantity = newQty
				pos.MarkPrice = price
				pos.UpdatedAt = now
			} else {
				pos = &journal.Position{
					Symbol:    l.symbol,
					Quantity:  quantity,
					AvgPrice:  price,
					MarkPrice: price,
					UpdatedAt: now,
				}
			}
			if err := tx.UpsertPosition(*pos); err != nil {
				return err
			}

		case journal.Sell:
			// Tolerance on the held-quantity check for the same reason
			// as closeEpsilon: repeated partial sells leave float dust.
			if pos == nil || pos.Quantity+closeEpsilon < quantity {
				return ErrInsufficientPosition
			}
			newCash = l.cash + gross - fee

			pl := (price - pos.AvgPrice) * quantity
			res.RealizedPL = &pl

			pos.Quantity -= quantity
			if math.Abs(pos.Quantity) <= closeEpsilon {
				if err := tx.DeletePosition(l.symbol); err != nil {
					return err
				}
			} else {
				pos.MarkPrice = price
				pos.UpdatedAt = now
				if err := tx.UpsertPosition(*pos); err != nil {
					return err
				}
			}

		default:
			return fmt.Errorf("ledger: unknown side %q", side)
		}

		rec := journal.TradeRecord{
			TradeID:    res.TradeID,
			Time:       now,
			Symbol:     l.symbol,
			Side:       side,
			Quantity:   quantity,
			Price:      price,
			Brokerage:  fee,
			GrossValue: gross,
			RealizedPL: res.RealizedPL,
		}
		if err := tx.InsertTrade(rec); err != nil {
			return err
		}

		return tx.SaveCash(newCash)
	})
	if err != nil {
		return Result{}, err
	}

	l.cash = newCash
	res.Cash = newCash

	evt := l.log.Info().
		Str("side", string(side)).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("cash", newCash)
	if res.RealizedPL != nil {
		evt = evt.Float64("realized_pl", *res.RealizedPL)
	}
	evt.Msg("Order executed")

	return res, nil
}

// MarkAndSnapshot refreshes each position's mark price from prices and
// appends one equity point. Positions whose symbol is missing from
// prices keep their last known mark. One transaction.
func (l *Ledger) MarkAndSnapshot(prices map[string]float64) (journal.EquitySnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	var snap journal.EquitySnapshot

	err := l.store.WithTx(func(tx *journal.Tx) error {
		positions, err := tx.ListPositions()
		if err != nil {
			return err
		}

		var portfolioValue float64
		for _, pos := range positions {
			if mark, ok := prices[pos.Symbol]; ok {
				pos.MarkPrice = mark
				pos.UpdatedAt = now
				if err := tx.UpsertPosition(pos); err != nil {
					return err
				}
			}
			portfolioValue += pos.MarketValue()
		}

		snap = journal.EquitySnapshot{
			Time:           now,
			Cash:           l.cash,
			PortfolioValue: portfolioValue,
			TotalEquity:    l.cash + portfolioValue,
		}
		return tx.InsertEquity(snap)
	})
	if err != nil {
		return journal.EquitySnapshot{}, err
	}

	return snap, nil
}

// RefreshMarks updates position mark prices without appending an equity
// point. Used by the administrative price-refresh operation; ticks use
// MarkAndSnapshot instead.
func (l *Ledger) RefreshMarks(prices map[string]float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()

	return l.store.WithTx(func(tx *journal.Tx) error {
		positions, err := tx.ListPositions()
		if err != nil {
			return err
		}
		for _, pos := range positions {
			mark, ok := prices[pos.Symbol]
			if !ok {
				continue
			}
			pos.MarkPrice = mark
			pos.UpdatedAt = now
			if err := tx.UpsertPosition(pos); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset wipes positions, trades and equity history and restores cash to
// initialCapital, all in one transaction. The run state row survives
// with running cleared.
func (l *Ledger) Reset(initialCapital float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.store.WithTx(func(tx *journal.Tx) error {
		if err := tx.ClearHistory(); err != nil {
			return err
		}
		if err := tx.SaveCash(initialCapital); err != nil {
			return err
		}
		return tx.SetRunning(false)
	})
	if err != nil {
		return err
	}

	l.cash = initialCapital
	l.log.Info().Float64("cash", initialCapital).Msg("Account reset")
	return nil
}
