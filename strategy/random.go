package strategy

import (
	"math/rand"
	"time"

	"github.com/rustyeddy/papertrader/journal"
)

// Random independently and uniformly picks one of BUY, SELL, HOLD each
// call, always with the configured quantity.
type Random struct {
	quantity float64
	rng      *rand.Rand
}

func NewRandom(quantity float64) *Random {
	return &Random{
		quantity: quantity,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewRandomSeeded is NewRandom with a fixed seed, for tests.
func NewRandomSeeded(quantity float64, seed int64) *Random {
	return &Random{
		quantity: quantity,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *Random) Name() string { return "random" }

func (s *Random) GenerateSignal(price float64, pos *journal.Position) Signal {
	switch s.rng.Intn(3) {
	case 0:
		return Signal{Action: Buy, Quantity: s.quantity}
	case 1:
		return Signal{Action: Sell, Quantity: s.quantity}
	default:
		return HoldSignal()
	}
}
