package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomWalkProducesPositivePrices(t *testing.T) {
	t.Parallel()

	f := NewRandomWalkSeeded(100, 0.01, 42)
	ctx := context.Background()

	last := 0.0
	for i := 0; i < 500; i++ {
		p, err := f.Fetch(ctx, "ACME")
		require.NoError(t, err)
		assert.Greater(t, p, 0.0)
		assert.NotEqual(t, last, p)
		last = p
	}
}

func TestRandomWalkHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	f := NewRandomWalk(100, 0.01)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "ACME")
	assert.Error(t, err)
}

func TestRESTFeedFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ACME", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"ACME","price":123.45}`))
	}))
	t.Cleanup(srv.Close)

	f := NewRESTFeed(srv.URL, time.Second)
	p, err := f.Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 123.45, p)
}

func TestRESTFeedUnavailable(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		},
		"zero price": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"symbol":"ACME","price":0}`))
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			t.Cleanup(srv.Close)

			f := NewRESTFeed(srv.URL, time.Second)
			_, err := f.Fetch(context.Background(), "ACME")
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestRESTFeedTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"symbol":"ACME","price":1}`))
	}))
	t.Cleanup(srv.Close)

	f := NewRESTFeed(srv.URL, 20*time.Millisecond)
	_, err := f.Fetch(context.Background(), "ACME")
	assert.ErrorIs(t, err, ErrUnavailable)
}
