// Package strategy turns a market price and the current position into a
// trading signal.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/papertrader/journal"
)

// Action is a strategy's decision for one tick.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Signal is the output of one strategy call. Quantity is zero for HOLD.
type Signal struct {
	Action   Action
	Quantity float64
}

// HoldSignal is the safe default when a strategy has too little history
// to decide.
func HoldSignal() Signal {
	return Signal{Action: Hold, Quantity: 0}
}

// Strategy produces a signal from the latest price and the current
// position (nil when nothing is held). Implementations may keep local
// memory (e.g. the previously observed price) but must never fail for a
// valid numeric price.
type Strategy interface {
	Name() string
	GenerateSignal(price float64, pos *journal.Position) Signal
}

// ErrUnknown rejects a strategy identifier outside the known set.
var ErrUnknown = errors.New("strategy: unknown strategy")

// New constructs a fresh strategy by identifier. A fresh instance has no
// history. Unknown names fail with ErrUnknown rather than defaulting.
func New(name string, quantity float64) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random":
		return NewRandom(quantity), nil
	case "momentum":
		return NewMomentum(quantity), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknown, name, strings.Join(Names(), ", "))
	}
}

// Names lists the known strategy identifiers.
func Names() []string {
	return []string{"random", "momentum"}
}
