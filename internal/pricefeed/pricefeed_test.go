package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/order-api/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.PriceFeedConfig{
		BaseURL:        baseURL,
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func TestGetPriceSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","price":203.55},{"symbol":"MSFT","price":428.90}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	quote, err := client.GetPrice(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("203.55")),
		"expected exactly 203.55, got %s", quote.Price)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetPriceSymbolMissingFromPayload(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","price":203.55}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPrice(context.Background(), "UNKNOWN")

	require.ErrorIs(t, err, ErrSymbolNotFound)
	// A missing symbol is a permanent client error, never retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetPriceClientErrorStatusNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}))

		client := newTestClient(server.URL)
		_, err := client.GetPrice(context.Background(), "AAPL")

		require.ErrorIs(t, err, ErrSymbolNotFound, "status %d", status)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", status)
		server.Close()
	}
}

func TestGetPriceExhaustsRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPrice(context.Background(), "AAPL")

	require.ErrorIs(t, err, ErrFeedUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "feed must be invoked exactly maxAttempts times")
}

func TestGetPriceEmptyPayloadIsUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPrice(context.Background(), "AAPL")

	require.ErrorIs(t, err, ErrFeedUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetPriceMalformedBodyIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPrice(context.Background(), "AAPL")

	require.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestGetPriceUnreachableHostIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPrice(context.Background(), "AAPL")

	require.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestGetPriceRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","price":123.45}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	quote, err := client.GetPrice(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("123.45")))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetPriceDefaultsApplied(t *testing.T) {
	client := NewClient(config.PriceFeedConfig{BaseURL: "http://localhost:9090/prices"})

	assert.Equal(t, DefaultMaxAttempts, client.maxAttempts)
	assert.Equal(t, DefaultInitialBackoff, client.initialBackoff)
	assert.Equal(t, DefaultMaxBackoff, client.maxBackoff)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}
