package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTrades(t *testing.T, j *SQLite, n int) {
	t.Helper()

	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	err := j.WithTx(func(tx *Tx) error {
		for i := 0; i < n; i++ {
			rec := TradeRecord{
				TradeID:    fmt.Sprintf("T%03d", i),
				Time:       base.Add(time.Duration(i) * time.Minute),
				Symbol:     "ACME",
				Side:       Buy,
				Quantity:   10,
				Price:      float64(100 + i),
				Brokerage:  0.5,
				GrossValue: float64(1000 + 10*i),
			}
			if err := tx.InsertTrade(rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestListTradesNewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	require.NoError(t, j.Bootstrap(defaultState()))
	seedTrades(t, j, 5)

	trades, err := j.ListTrades(3)
	require.NoError(t, err)
	require.Len(t, trades, 3)

	assert.Equal(t, "T004", trades[0].TradeID)
	assert.Equal(t, "T003", trades[1].TradeID)
	assert.Equal(t, "T002", trades[2].TradeID)

	all, err := j.ListTrades(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestListTradesNullableRealizedPL(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	require.NoError(t, j.Bootstrap(defaultState()))

	now := time.Now().UTC()
	pl := 100.0
	err := j.WithTx(func(tx *Tx) error {
		if err := tx.InsertTrade(TradeRecord{
			TradeID: "B1", Time: now, Symbol: "ACME", Side: Buy,
			Quantity: 10, Price: 50, Brokerage: 0.25, GrossValue: 500,
		}); err != nil {
			return err
		}
		return tx.InsertTrade(TradeRecord{
			TradeID: "S1", Time: now.Add(time.Minute), Symbol: "ACME", Side: Sell,
			Quantity: 10, Price: 60, Brokerage: 0.30, GrossValue: 600, RealizedPL: &pl,
		})
	})
	require.NoError(t, err)

	trades, err := j.ListTrades(0)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// Newest first: the SELL carries P&L, the BUY does not.
	assert.Equal(t, Sell, trades[0].Side)
	require.NotNil(t, trades[0].RealizedPL)
	assert.Equal(t, 100.0, *trades[0].RealizedPL)

	assert.Equal(t, Buy, trades[1].Side)
	assert.Nil(t, trades[1].RealizedPL)
}

func TestListEquityOldestFirst(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	require.NoError(t, j.Bootstrap(defaultState()))

	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	err := j.WithTx(func(tx *Tx) error {
		for i := 0; i < 3; i++ {
			e := EquitySnapshot{
				Time:           base.Add(time.Duration(i) * time.Hour),
				Cash:           1000,
				PortfolioValue: float64(i * 100),
				TotalEquity:    1000 + float64(i*100),
			}
			if err := tx.InsertEquity(e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	history, err := j.ListEquity()
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 1000.0, history[0].TotalEquity)
	assert.Equal(t, 1200.0, history[2].TotalEquity)
}

func TestPositionDerivedValues(t *testing.T) {
	t.Parallel()

	p := Position{Symbol: "ACME", Quantity: 10, AvgPrice: 50, MarkPrice: 55}
	assert.Equal(t, 50.0, p.UnrealizedPL())
	assert.Equal(t, 550.0, p.MarketValue())
}
