package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/order-api/internal/config"
)

// Default retry policy, applied when the configuration leaves a field unset.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 200 * time.Millisecond
	DefaultMaxBackoff     = 500 * time.Millisecond
)

var (
	// ErrSymbolNotFound means the feed does not know the symbol or rejected
	// the request as malformed. Never retried: a retry cannot fix a wrong
	// symbol, and masking it behind "unavailable" would mislead the caller.
	ErrSymbolNotFound = errors.New("price not found for symbol")

	// ErrFeedUnavailable means the feed could not produce a usable price
	// within the retry budget: network failure, server error, or a malformed
	// or empty response.
	ErrFeedUnavailable = errors.New("price feed unavailable")
)

// Quote is the result of one successful price-feed call. It is never
// persisted; every order placement performs a fresh lookup.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
}

// priceItem mirrors the feed's bulk payload entries. Price is decoded as a
// decimal to avoid binary floating-point rounding.
type priceItem struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Client fetches price quotes from the external feed, retrying transient
// failures with capped exponential backoff. It holds no cross-call state.
type Client struct {
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	httpClient     *http.Client
	logger         zerolog.Logger
}

func NewClient(cfg config.PriceFeedConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = DefaultInitialBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         log.With().Str("component", "pricefeed").Logger(),
	}
}

// GetPrice resolves the current price for symbol. Transient failures are
// retried up to the attempt budget with exponential backoff (2x per attempt,
// capped); a symbol the feed does not know fails immediately with
// ErrSymbolNotFound. Once the budget is exhausted the last failure is
// surfaced as ErrFeedUnavailable.
func (c *Client) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	delay := c.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Quote{}, fmt.Errorf("%w: %v", ErrFeedUnavailable, ctx.Err())
			}
			delay *= 2
			if delay > c.maxBackoff {
				delay = c.maxBackoff
			}
		}

		quote, err := c.fetchOnce(ctx, symbol)
		if err == nil {
			c.logger.Debug().
				Str("symbol", symbol).
				Str("price", quote.Price.String()).
				Int("attempt", attempt).
				Msg("price fetched")
			return quote, nil
		}
		if errors.Is(err, ErrSymbolNotFound) {
			c.logger.Warn().Str("symbol", symbol).Msg("symbol unknown to price feed")
			return Quote{}, err
		}

		lastErr = err
		c.logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Msg("price feed attempt failed")
	}

	return Quote{}, fmt.Errorf("%w after %d attempts: %v", ErrFeedUnavailable, c.maxAttempts, lastErr)
}

// fetchOnce issues a single request against the feed's bulk endpoint and
// filters the payload for symbol.
func (c *Client) fetchOnce(ctx context.Context, symbol string) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build price feed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("price feed request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return Quote{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	case resp.StatusCode != http.StatusOK:
		return Quote{}, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var items []priceItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return Quote{}, fmt.Errorf("decode price feed response: %w", err)
	}
	if len(items) == 0 {
		// A 200 with nothing in it is an invalid response, not a missing
		// symbol, so it stays retryable.
		return Quote{}, errors.New("empty price feed response")
	}

	for _, item := range items {
		if item.Symbol == symbol {
			return Quote{Symbol: symbol, Price: item.Price}, nil
		}
	}

	return Quote{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
}
