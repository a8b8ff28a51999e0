// Package control owns the persisted run state and drives the tick
// pipeline, either on a schedule or on demand.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/pricefeed"
	"github.com/rustyeddy/papertrader/strategy"
)

// ErrInvalidInterval rejects a non-positive tick interval.
var ErrInvalidInterval = errors.New("control: interval must be positive")

// Config carries the controller's fixed parameters.
type Config struct {
	InitialCapital float64
	Quantity       float64       // order size handed to strategies
	FetchTimeout   time.Duration // price fetch deadline per tick
}

// TickResult summarizes one run of the tick pipeline.
type TickResult struct {
	Price    float64
	Action   strategy.Action
	Executed bool
	Message  string
	Equity   journal.EquitySnapshot
}

// Controller is the run-state owner: it flips the running flag, manages
// the cron entry, and invokes feed, strategy and ledger in sequence. All
// run-state decisions happen under the mutex, which also serializes
// ticks so a manual tick and a scheduled tick cannot interleave.
type Controller struct {
	mu    sync.Mutex
	store *journal.SQLite
	book  *ledger.Ledger
	feed  pricefeed.Source
	strat strategy.Strategy
	cfg   Config
	log   zerolog.Logger

	cron     *cron.Cron
	entry    cron.EntryID
	hasEntry bool
}

// New builds a controller, instantiating the strategy persisted in run
// state. The cron runner starts immediately but fires nothing until an
// entry is registered.
func New(store *journal.SQLite, book *ledger.Ledger, feed pricefeed.Source, cfg Config, log zerolog.Logger) (*Controller, error) {
	st, err := store.GetRunState()
	if err != nil {
		return nil, fmt.Errorf("control: load run state: %w", err)
	}

	strat, err := strategy.New(st.Strategy, cfg.Quantity)
	if err != nil {
		return nil, err
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	c := &Controller{
		store: store,
		book:  book,
		feed:  feed,
		strat: strat,
		cfg:   cfg,
		log:   log.With().Str("component", "control").Logger(),
		cron:  cron.New(),
	}
	c.cron.Start()
	return c, nil
}

// Start flips the running flag and schedules the recurring tick job.
// Calling it while already running is a no-op: no duplicate entries are
// ever created.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.store.GetRunState()
	if err != nil {
		return err
	}
	if st.Running && c.hasEntry {
		return nil
	}

	if err := c.scheduleLocked(st.IntervalMinutes); err != nil {
		return err
	}

	if err := c.store.WithTx(func(tx *journal.Tx) error {
		return tx.SetRunning(true)
	}); err != nil {
		c.removeEntryLocked()
		return err
	}

	c.log.Info().Int("interval_minutes", st.IntervalMinutes).Msg("Trading started")
	return nil
}

// Stop cancels the scheduled job and clears the running flag. Safe to
// call when already stopped. An in-flight tick runs to completion.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	c.removeEntryLocked()

	if err := c.store.WithTx(func(tx *journal.Tx) error {
		return tx.SetRunning(false)
	}); err != nil {
		return err
	}

	c.log.Info().Msg("Trading stopped")
	return nil
}

// SetInterval persists a new tick interval. When running, the job is
// rescheduled in place so the running flag never flips.
func (c *Controller) SetInterval(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidInterval
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.WithTx(func(tx *journal.Tx) error {
		return tx.SetInterval(minutes)
	}); err != nil {
		return err
	}

	if c.hasEntry {
		c.removeEntryLocked()
		if err := c.scheduleLocked(minutes); err != nil {
			return err
		}
	}

	c.log.Info().Int("interval_minutes", minutes).Msg("Interval updated")
	return nil
}

// SetStrategy validates the identifier, stops any active job, persists
// the name and swaps in a fresh strategy instance. Strategy-local memory
// (e.g. momentum's last price) is discarded.
func (c *Controller) SetStrategy(name string) error {
	strat, err := strategy.New(name, c.cfg.Quantity)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(); err != nil {
		return err
	}

	if err := c.store.WithTx(func(tx *journal.Tx) error {
		return tx.SetStrategy(strat.Name())
	}); err != nil {
		return err
	}

	c.strat = strat
	c.log.Info().Str("strategy", strat.Name()).Msg("Strategy changed")
	return nil
}

// Tick runs the pipeline exactly once, regardless of the running flag.
// It never touches the scheduled job or its next firing.
func (c *Controller) Tick(ctx context.Context) (TickResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickLocked(ctx)
}

// ResumeOnStart re-establishes the recurring job from persisted state.
// Called once at process startup: a restart while RUNNING resumes
// ticking at the persisted interval without flipping the flag.
func (c *Controller) ResumeOnStart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.store.GetRunState()
	if err != nil {
		return err
	}
	if !st.Running || c.hasEntry {
		return nil
	}

	if err := c.scheduleLocked(st.IntervalMinutes); err != nil {
		return err
	}

	c.log.Info().Int("interval_minutes", st.IntervalMinutes).Msg("Resumed trading from persisted state")
	return nil
}

// Reset stops any active job and wipes the account back to the initial
// capital: positions, trades and equity history are deleted.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntryLocked()

	// ledger.Reset clears running in the same transaction as the wipe.
	return c.book.Reset(c.cfg.InitialCapital)
}

// RefreshPrices fetches the latest price and updates position marks
// without appending an equity point or trading.
func (c *Controller) RefreshPrices(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	symbol := c.book.Symbol()

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	price, err := c.feed.Fetch(fetchCtx, symbol)
	cancel()
	if err != nil {
		return pricefeed.ErrUnavailable
	}

	return c.book.RefreshMarks(map[string]float64{symbol: price})
}

// SetCash overwrites the cash balance.
func (c *Controller) SetCash(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("control: cash must not be negative, got %v", amount)
	}
	return c.book.SetCash(amount)
}

// Status reads the persisted run state.
func (c *Controller) Status() (journal.RunState, error) {
	return c.store.GetRunState()
}

// StrategyName returns the live strategy's identifier.
func (c *Controller) StrategyName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strat.Name()
}

// Close stops the cron runner. Pending entries are dropped; persisted
// state is left as-is so ResumeOnStart can pick it up next boot.
func (c *Controller) Close() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// scheduleLocked registers the recurring tick job at the given interval.
func (c *Controller) scheduleLocked(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidInterval
	}

	entry, err := c.cron.AddFunc(fmt.Sprintf("@every %dm", minutes), c.scheduledTick)
	if err != nil {
		return fmt.Errorf("control: schedule tick job: %w", err)
	}

	c.entry = entry
	c.hasEntry = true
	return nil
}

func (c *Controller) removeEntryLocked() {
	if c.hasEntry {
		c.cron.Remove(c.entry)
		c.hasEntry = false
	}
}

// scheduledTick is the cron callback: one tick plus a heartbeat update.
// Failures are logged, never fatal; the next firing still happens.
func (c *Controller) scheduledTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.tickLocked(context.Background())
	if err != nil {
		c.log.Warn().Err(err).Msg("Scheduled tick failed")
	} else {
		c.log.Debug().
			Float64("price", res.Price).
			Str("action", string(res.Action)).
			Msg("Scheduled tick completed")
	}

	if err := c.store.WithTx(func(tx *journal.Tx) error {
		return tx.Heartbeat(time.Now().UTC())
	}); err != nil {
		c.log.Error().Err(err).Msg("Heartbeat update failed")
	}
}

// tickLocked runs fetch -> strategy -> execute -> snapshot. A feed
// outage aborts before any ledger mutation but still records equity at
// the last known marks. A trade rejected by the ledger is a normal
// outcome: the tick completes its snapshot.
func (c *Controller) tickLocked(ctx context.Context) (TickResult, error) {
	symbol := c.book.Symbol()

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	price, err := c.feed.Fetch(fetchCtx, symbol)
	cancel()
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Price fetch failed")

		snap, snapErr := c.book.MarkAndSnapshot(nil)
		if snapErr != nil {
			return TickResult{}, snapErr
		}
		return TickResult{Equity: snap, Message: "price unavailable"}, pricefeed.ErrUnavailable
	}

	pos, err := c.store.GetPosition(symbol)
	if err != nil {
		return TickResult{}, err
	}

	sig := c.strat.GenerateSignal(price, pos)

	res := TickResult{Price: price, Action: sig.Action}

	switch sig.Action {
	case strategy.Buy, strategy.Sell:
		_, execErr := c.book.Execute(journal.Side(sig.Action), sig.Quantity, price)
		switch {
		case execErr == nil:
			res.Executed = true
			res.Message = "order executed"
		case errors.Is(execErr, ledger.ErrInsufficientFunds),
			errors.Is(execErr, ledger.ErrInsufficientPosition):
			// Rejected trades are expected; trading continues next tick.
			res.Message = execErr.Error()
			c.log.Info().Err(execErr).Str("action", string(sig.Action)).Msg("Order rejected")
		default:
			return TickResult{}, execErr
		}
	default:
		res.Message = "hold"
	}

	snap, err := c.book.MarkAndSnapshot(map[string]float64{symbol: price})
	if err != nil {
		return TickResult{}, err
	}
	res.Equity = snap

	return res, nil
}
