package coingecko

import (
	"context"
	"net/http"
	"sync/atomic"
	"net/http/httptest"
	"testing"
	"time"

	httpx "SignalBot/pkg/http"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: apiKey, RateCapacity: 100, RatePerSecond: 100})
}

func TestMarketChartParsesPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prices":[[1714521600000,60000.5],[1714525200000,60100.25],[1714528800000]],"total_volumes":[]}`))
	}, "demo-key")

	pts, err := c.MarketChart(context.Background(), "bitcoin", 7)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, "bitcoin", pts[0].AssetID)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), pts[0].Timestamp)
	assert.Equal(t, 60000.5, pts[0].Price)
	assert.Equal(t, 60100.25, pts[1].Price)
}

func TestMarketChartOmitsKeyHeaderWhenUnset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-cg-demo-api-key"))
		_, _ = w.Write([]byte(`{"prices":[]}`))
	}, "")

	pts, err := c.MarketChart(context.Background(), "eth", 0)
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestMarketChartSurfacesStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":{"error_code":429}}`))
	}, "")

	_, err := c.MarketChart(context.Background(), "bitcoin", 1)
	require.Error(t, err)
	var se *httpx.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, se.Retryable())
}

func TestTopAssetIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		assert.Equal(t, "market_cap_desc", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`[{"id":"bitcoin","symbol":"btc"},{"id":"ethereum","symbol":"eth"},{"id":"tether","symbol":"usdt"}]`))
	}, "")

	ids, err := c.TopAssetIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin", "ethereum", "tether"}, ids)
}

func TestBreakerOpensOnUpstreamFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, RateCapacity: 100, RatePerSecond: 100, BreakerFailures: 2, BreakerCooldown: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := c.MarketChart(context.Background(), "bitcoin", 1)
		require.Error(t, err)
	}
	_, err := c.MarketChart(context.Background(), "bitcoin", 1)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, RateCapacity: 100, RatePerSecond: 100, BreakerFailures: 1})

	for i := 0; i < 3; i++ {
		_, err := c.MarketChart(context.Background(), "nope", 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}
