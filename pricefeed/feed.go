// Package pricefeed supplies the latest market price for a symbol.
package pricefeed

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the feed has no usable price. Callers
// must treat it as a transient outage, never as a price of zero.
var ErrUnavailable = errors.New("pricefeed: price unavailable")

// Source fetches the latest price for a symbol.
type Source interface {
	Fetch(ctx context.Context, symbol string) (float64, error)
}
