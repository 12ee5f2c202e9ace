package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinwatch/internal/metrics"
)

const defaultMarketCapURL = "https://deep-index.moralis.io/api/v2.2/market-data/global/market-cap"

// MoralisClient implements Client against the Moralis top-coins-by-market-cap
// snapshot endpoint. Provider failures are logged and reported as not found;
// they never propagate to the caller.
type MoralisClient struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	rateLimiter *RateLimiter
	log         *slog.Logger
}

// MoralisOption configures the MoralisClient.
type MoralisOption func(*MoralisClient)

// WithBaseURL overrides the default market-cap endpoint.
func WithBaseURL(u string) MoralisOption {
	return func(c *MoralisClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) MoralisOption {
	return func(c *MoralisClient) {
		c.client = hc
	}
}

// WithRateLimiter injects a rate limiter that controls per-second and daily
// provider call limits. When set, every snapshot fetch goes through Wait() first.
func WithRateLimiter(r *RateLimiter) MoralisOption {
	return func(c *MoralisClient) {
		c.rateLimiter = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) MoralisOption {
	return func(c *MoralisClient) {
		c.log = l
	}
}

// NewMoralisClient creates a new Moralis market-data client.
func NewMoralisClient(apiKey string, opts ...MoralisOption) *MoralisClient {
	c := &MoralisClient{
		apiKey:  apiKey,
		baseURL: defaultMarketCapURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// coinEntry is one ranked entry in the provider's market-cap snapshot.
type coinEntry struct {
	Rank     int             `json:"rank"`
	Name     string          `json:"name"`
	Symbol   string          `json:"symbol"`
	USDPrice decimal.Decimal `json:"usd_price"`
}

// FetchPrice fetches the current snapshot of ranked assets and returns the
// USD price of the entry whose name matches case-insensitively. It returns
// found=false when the asset is absent or the provider call fails.
func (c *MoralisClient) FetchPrice(ctx context.Context, name string) (decimal.Decimal, bool) {
	entries, err := c.fetchSnapshot(ctx)
	if err != nil {
		c.log.Error("market snapshot fetch failed", "asset", name, "error", err)
		return decimal.Zero, false
	}

	for i := range entries {
		if strings.EqualFold(entries[i].Name, name) {
			return entries[i].USDPrice, true
		}
	}

	return decimal.Zero, false
}

func (c *MoralisClient) fetchSnapshot(ctx context.Context) ([]coinEntry, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if errors.Is(err, ErrDailyLimitReached) {
				metrics.MarketDailyLimitHits.Inc()
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		metrics.MarketAPICallsTotal.Inc()
		metrics.MarketDailyUsage.Set(float64(c.rateLimiter.DailyCount()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing snapshot request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"market API error (status %d): %s",
			resp.StatusCode,
			string(body),
		)
	}

	var entries []coinEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing snapshot response: %w", err)
	}

	return entries, nil
}
