package strategy

import "github.com/rustyeddy/papertrader/journal"

// Momentum is a one-step trend follower: BUY when the price rose since
// the previous call, SELL when it fell, HOLD when unchanged or on the
// first observation. The remembered price updates on every call whatever
// the action. Memory is in-process only; a restart starts from scratch.
type Momentum struct {
	quantity  float64
	lastPrice float64
	seen      bool
}

func NewMomentum(quantity float64) *Momentum {
	return &Momentum{quantity: quantity}
}

func (s *Momentum) Name() string { return "momentum" }

func (s *Momentum) GenerateSignal(price float64, pos *journal.Position) Signal {
	if !s.seen {
		s.lastPrice = price
		s.seen = true
		return HoldSignal()
	}

	var sig Signal
	switch {
	case price > s.lastPrice:
		sig = Signal{Action: Buy, Quantity: s.quantity}
	case price < s.lastPrice:
		sig = Signal{Action: Sell, Quantity: s.quantity}
	default:
		sig = HoldSignal()
	}

	s.lastPrice = price
	return sig
}
