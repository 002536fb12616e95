// Package coingecko fetches historical market data over the CoinGecko REST API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"SignalBot/internal/domain/models"
	domsvc "SignalBot/internal/domain/service"
	"SignalBot/internal/service/ratelimit"
	httpx "SignalBot/pkg/http"
	applogger "SignalBot/pkg/logger"

	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	apiKeyHeader   = "x-cg-demo-api-key"
	limiterKey     = "coingecko"
)

// Config holds the client knobs.
type Config struct {
	BaseURL       string
	APIKey        string
	VsCurrency    string
	Timeout       time.Duration
	RateCapacity  float64
	RatePerSecond float64

	// breaker opens after this many consecutive upstream failures
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client implements domain MarketHistory backed by CoinGecko.
type Client struct {
	cfg     Config
	http    *httpx.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	l       *applogger.Logger
}

type Option func(*Client)

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

func WithLimiter(lim *ratelimit.Limiter) Option {
	return func(c *Client) {
		if lim != nil {
			c.limiter = lim
		}
	}
}

// WithHTTPClient overrides the transport client.
func WithHTTPClient(h *httpx.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.RateCapacity <= 0 {
		cfg.RateCapacity = 5
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 0.5
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		http:    httpx.NewClient(httpx.WithTimeout(cfg.Timeout), httpx.WithUserAgent("signalbot")),
		limiter: ratelimit.New(),
		l:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "coingecko",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: upstreamHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})
	return c
}

// upstreamHealthy counts client-side errors such as an unknown coin id as
// successes so they do not trip the breaker.
func upstreamHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *httpx.StatusError
	return errors.As(err, &se) && !se.Retryable()
}

type marketChartResponse struct {
	Prices [][]float64 `json:"prices"`
}

// MarketChart returns the price history of assetID over the last days days,
// ordered as the API returns it (ascending by time).
func (c *Client) MarketChart(ctx context.Context, assetID string, days int) ([]models.PricePoint, error) {
	if days <= 0 {
		days = 30
	}
	var resp marketChartResponse
	err := c.get(ctx, "/coins/"+url.PathEscape(assetID)+"/market_chart", url.Values{
		"vs_currency": {c.cfg.VsCurrency},
		"days":        {strconv.Itoa(days)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("coingecko market_chart %s: %w", assetID, err)
	}

	out := make([]models.PricePoint, 0, len(resp.Prices))
	for _, pair := range resp.Prices {
		if len(pair) < 2 || math.IsNaN(pair[0]) {
			continue
		}
		out = append(out, models.PricePoint{
			AssetID:   assetID,
			Timestamp: time.UnixMilli(int64(pair[0])).UTC(),
			Price:     pair[1],
		})
	}
	c.l.Info("coingecko history fetched",
		applogger.String("asset_id", assetID),
		applogger.Int("days", days),
		applogger.Int("points", len(out)),
	)
	return out, nil
}

// Market is one row of the markets listing.
type Market struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
}

// TopCoins lists the limit largest coins by market cap.
func (c *Client) TopCoins(ctx context.Context, limit int) ([]Market, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Market
	err := c.get(ctx, "/coins/markets", url.Values{
		"vs_currency": {c.cfg.VsCurrency},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(limit)},
		"page":        {"1"},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("coingecko markets: %w", err)
	}
	return out, nil
}

// TopAssetIDs returns the ids of TopCoins.
func (c *Client) TopAssetIDs(ctx context.Context, limit int) ([]string, error) {
	markets, err := c.TopCoins(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx, limiterKey, c.cfg.RateCapacity, c.cfg.RatePerSecond); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	req := httpx.Request{URL: c.cfg.BaseURL + path, Query: query}
	if c.cfg.APIKey != "" {
		req.Headers = map[string]string{apiKeyHeader: c.cfg.APIKey}
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.http.GetJSON(ctx, req, dest)
	})
	return err
}

var (
	_ domsvc.MarketHistory = (*Client)(nil)
	_ domsvc.AssetLister   = (*Client)(nil)
)
