package pricefeed

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RandomWalk is a simulated feed: each fetch moves the price by a uniform
// return in [-vol, +vol]. Useful for demos and for exercising the full
// tick pipeline without network access.
type RandomWalk struct {
	mu    sync.Mutex
	price float64
	vol   float64
	rng   *rand.Rand
}

// NewRandomWalk creates a simulated feed starting at startPrice with
// per-fetch volatility vol (e.g. 0.002 for +/-0.2%).
func NewRandomWalk(startPrice, vol float64) *RandomWalk {
	return &RandomWalk{
		price: startPrice,
		vol:   vol,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewRandomWalkSeeded is NewRandomWalk with a fixed seed, for tests.
func NewRandomWalkSeeded(startPrice, vol float64, seed int64) *RandomWalk {
	return &RandomWalk{
		price: startPrice,
		vol:   vol,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (f *RandomWalk) Fetch(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ret := (f.rng.Float64() - 0.5) * 2.0 * f.vol
	f.price = f.price * (1.0 + ret)
	return f.price, nil
}
