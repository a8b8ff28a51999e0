// Package journal persists the paper trader's positions, trades, equity
// curve and run state in SQLite.
package journal

import "time"

// Side is the direction of an executed order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Position is the current holding in one symbol. A position with zero
// quantity is deleted rather than stored as a zero row.
type Position struct {
	Symbol    string
	Quantity  float64
	AvgPrice  float64
	MarkPrice float64
	UpdatedAt time.Time
}

// UnrealizedPL is the paper profit on the open position at the latest mark.
func (p Position) UnrealizedPL() float64 {
	return (p.MarkPrice - p.AvgPrice) * p.Quantity
}

// MarketValue is quantity times the latest mark price.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.MarkPrice
}

// TradeRecord is an immutable record of one executed order. RealizedPL is
// nil for BUY orders; SELL orders book P&L against the pre-trade average
// cost.
type TradeRecord struct {
	TradeID    string
	Time       time.Time
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64
	Brokerage  float64
	GrossValue float64
	RealizedPL *float64
}

// EquitySnapshot is one point of the equity time series, appended once
// per tick.
type EquitySnapshot struct {
	Time           time.Time
	Cash           float64
	PortfolioValue float64
	TotalEquity    float64
}

// RunState is the singleton row holding whether automated trading is
// active, the tick interval, the active strategy, and the authoritative
// cash balance.
type RunState struct {
	Running         bool
	IntervalMinutes int
	Strategy        string
	Cash            float64
	LastHeartbeat   time.Time
}
