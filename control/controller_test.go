package control

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/pricefeed"
	"github.com/rustyeddy/papertrader/strategy"
)

// scriptedFeed replays a fixed price sequence, repeating the last price
// once exhausted. A non-nil err makes every fetch fail.
type scriptedFeed struct {
	mu     sync.Mutex
	prices []float64
	next   int
	err    error
}

func (f *scriptedFeed) Fetch(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}
	i := f.next
	if i >= len(f.prices) {
		i = len(f.prices) - 1
	}
	f.next++
	return f.prices[i], nil
}

func newTestController(t *testing.T, feed pricefeed.Source, strategyName string) (*Controller, *journal.SQLite) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "control.db")
	store, err := journal.NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Bootstrap(journal.RunState{
		Running:         false,
		IntervalMinutes: 5,
		Strategy:        strategyName,
		Cash:            100000,
		LastHeartbeat:   time.Now().UTC(),
	}))

	book, err := ledger.New(store, "ACME", 0.0005, zerolog.Nop())
	require.NoError(t, err)

	c, err := New(store, book, feed, Config{
		InitialCapital: 100000,
		Quantity:       10,
		FetchTimeout:   time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c, store
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	require.NoError(t, c.Start())
	require.NoError(t, c.Start())

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.True(t, st.Running)

	// No duplicate timers.
	assert.Len(t, c.cron.Entries(), 1)
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Empty(t, c.cron.Entries())
}

func TestSetIntervalRejectsNonPositive(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	require.ErrorIs(t, c.SetInterval(0), ErrInvalidInterval)
	require.ErrorIs(t, c.SetInterval(-3), ErrInvalidInterval)

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.Equal(t, 5, st.IntervalMinutes, "interval must be unchanged after rejection")
}

func TestSetIntervalWhileRunningReschedules(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	require.NoError(t, c.Start())
	require.NoError(t, c.SetInterval(7))

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.True(t, st.Running, "rescheduling must not lose the running state")
	assert.Equal(t, 7, st.IntervalMinutes)
	assert.Len(t, c.cron.Entries(), 1)
}

func TestSetStrategyUnknownRejected(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	require.ErrorIs(t, c.SetStrategy("astrology"), strategy.ErrUnknown)

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.Equal(t, "momentum", st.Strategy)
}

func TestSetStrategyStopsJobAndSwapsInstance(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	require.NoError(t, c.Start())
	require.NoError(t, c.SetStrategy("random"))

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Equal(t, "random", st.Strategy)
	assert.Equal(t, "random", c.StrategyName())
	assert.Empty(t, c.cron.Entries())
}

func TestSetStrategyDiscardsLocalMemory(t *testing.T) {
	t.Parallel()

	feed := &scriptedFeed{prices: []float64{100, 110, 120}}
	c, store := newTestController(t, feed, "momentum")

	ctx := context.Background()

	// Warm up momentum's memory, then swap it out and back in.
	_, err := c.Tick(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetStrategy("momentum"))

	// Fresh instance: first observation holds even though prices rose.
	res, err := c.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategy.Hold, res.Action)

	trades, err := store.ListTrades(0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestManualTickRunsPipeline(t *testing.T) {
	t.Parallel()

	feed := &scriptedFeed{prices: []float64{100, 110}}
	c, store := newTestController(t, feed, "momentum")

	ctx := context.Background()

	// First tick: no history yet, HOLD.
	res, err := c.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategy.Hold, res.Action)
	assert.False(t, res.Executed)

	// Second tick: price rose, momentum buys 10 @ 110.
	res, err = c.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategy.Buy, res.Action)
	assert.True(t, res.Executed)

	pos, err := store.GetPosition("ACME")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)

	// One equity point per tick, manual or scheduled.
	history, err := store.ListEquity()
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// Manual ticks never touch the running flag.
	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Empty(t, c.cron.Entries())
}

func TestRejectedTradeStillCompletesTick(t *testing.T) {
	t.Parallel()

	// Falling prices with nothing held: momentum tries to SELL and is
	// rejected, which is a normal outcome.
	feed := &scriptedFeed{prices: []float64{100, 90}}
	c, store := newTestController(t, feed, "momentum")

	ctx := context.Background()
	_, err := c.Tick(ctx)
	require.NoError(t, err)

	res, err := c.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategy.Sell, res.Action)
	assert.False(t, res.Executed)
	assert.NotEmpty(t, res.Message)

	// The equity snapshot still happened.
	history, err := store.ListEquity()
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTickPriceUnavailable(t *testing.T) {
	t.Parallel()

	feed := &scriptedFeed{err: pricefeed.ErrUnavailable}
	c, store := newTestController(t, feed, "momentum")

	_, err := c.Tick(context.Background())
	require.ErrorIs(t, err, pricefeed.ErrUnavailable)

	// No ledger mutation, but equity was recorded at last marks.
	trades, err := store.ListTrades(0)
	require.NoError(t, err)
	assert.Empty(t, trades)

	history, err := store.ListEquity()
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestResumeOnStartReestablishesJob(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	// Simulate a crash while RUNNING: the flag is persisted but this
	// process has no scheduled job yet.
	require.NoError(t, store.WithTx(func(tx *journal.Tx) error {
		return tx.SetRunning(true)
	}))

	require.NoError(t, c.ResumeOnStart())

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Len(t, c.cron.Entries(), 1)

	// Calling it again must not add a second entry.
	require.NoError(t, c.ResumeOnStart())
	assert.Len(t, c.cron.Entries(), 1)
}

func TestResumeOnStartNoopWhenStopped(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "momentum")

	require.NoError(t, c.ResumeOnStart())

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Empty(t, c.cron.Entries())
}

func TestResetRoundTrip(t *testing.T) {
	t.Parallel()

	feed := &scriptedFeed{prices: []float64{100, 110}}
	c, store := newTestController(t, feed, "momentum")

	ctx := context.Background()
	_, err := c.Tick(ctx)
	require.NoError(t, err)
	_, err = c.Tick(ctx) // buys
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.NoError(t, c.Reset())

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Equal(t, 100000.0, st.Cash)
	assert.Empty(t, c.cron.Entries())

	positions, err := store.ListPositions()
	require.NoError(t, err)
	assert.Empty(t, positions)

	trades, err := store.ListTrades(0)
	require.NoError(t, err)
	assert.Empty(t, trades)

	history, err := store.ListEquity()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSetCash(t *testing.T) {
	t.Parallel()

	c, store := newTestController(t, &scriptedFeed{prices: []float64{100}}, "random")

	require.NoError(t, c.SetCash(50000))

	st, err := store.GetRunState()
	require.NoError(t, err)
	assert.Equal(t, 50000.0, st.Cash)

	assert.Error(t, c.SetCash(-1))
}
