package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RESTFeed polls a JSON quote endpoint. The endpoint is expected to
// answer GET <base>?symbol=<symbol> with {"symbol": "...", "price": N}.
// Any transport error, timeout, non-200 status or non-positive price is
// reported as ErrUnavailable so a flaky upstream never produces a bogus
// fill price.
type RESTFeed struct {
	base   string
	client *http.Client
}

type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// NewRESTFeed creates a REST price source with the given request timeout.
func NewRESTFeed(base string, timeout time.Duration) *RESTFeed {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &RESTFeed{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *RESTFeed) Fetch(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s?symbol=%s", f.base, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("pricefeed: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, ErrUnavailable
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, ErrUnavailable
	}
	if quote.Price <= 0 {
		return 0, ErrUnavailable
	}

	return quote.Price, nil
}
