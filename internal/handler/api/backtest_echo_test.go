package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	models "SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	icache "SignalBot/internal/service/cache"
	"SignalBot/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type stubEvaluator struct {
	signals    []models.SignalRecord
	schema     *models.SchemaError
	err        error
	reports    int
	lastQuery  domrepo.Query
	lastParams usecase.Params
}

func (s *stubEvaluator) Signals(_ context.Context, q domrepo.Query) (models.Result[models.SignalRecord], error) {
	s.lastQuery = q
	return models.Result[models.SignalRecord]{Items: s.signals, Schema: s.schema}, s.err
}

func (s *stubEvaluator) Report(_ context.Context, p usecase.Params) (models.Report, error) {
	s.reports++
	s.lastParams = p
	if s.err != nil {
		return models.Report{}, s.err
	}
	threshold := 0.05
	if p.Threshold != nil {
		threshold = *p.Threshold
	}
	return models.Report{
		RunID: "r1", Threshold: threshold, Window: p.Window, Evaluated: 1, Successes: 1, HitRate: 1,
		Outcomes: []models.BacktestOutcome{{AssetID: "btc", SignalTime: t0, Labels: models.Labels{models.TagBuyRSIOversold}, ReturnPct: 0.1, Success: true}},
	}, nil
}

func serve(h *BacktestEchoHandler, target string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestSignalsEndpoint(t *testing.T) {
	ev := &stubEvaluator{signals: []models.SignalRecord{
		{AssetID: "btc", Timestamp: t0, Labels: models.Labels{models.TagBuyRSIOversold, models.TagPotentialBreakout}},
		{AssetID: "btc", Timestamp: t0.Add(time.Hour), Labels: models.Labels{}},
	}}
	rec := serve(NewBacktestEchoHandler(nil, ev), "/api/signals?asset=btc&from=2024-05-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rows  []map[string]any `json:"rows"`
		Total int              `json:"total"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "BUY_RSI_OVERSOLD, POTENTIAL_BREAKOUT", body.Rows[0]["signal"])
	assert.Equal(t, "HOLD", body.Rows[1]["signal"])
	assert.Equal(t, []string{"btc"}, ev.lastQuery.Assets)
	assert.Equal(t, t0, ev.lastQuery.From)
}

func TestSignalsLimitKeepsNewest(t *testing.T) {
	ev := &stubEvaluator{}
	for i := 0; i < 5; i++ {
		ev.signals = append(ev.signals, models.SignalRecord{AssetID: "btc", Timestamp: t0.Add(time.Duration(i) * time.Hour)})
	}
	rec := serve(NewBacktestEchoHandler(nil, ev), "/api/signals?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SignalsResponse
	decode(t, rec, &body)
	assert.Equal(t, 5, body.Total)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, t0.Add(3*time.Hour), body.Rows[0].Timestamp)
}

func TestSignalsSchemaDiagnostic(t *testing.T) {
	ev := &stubEvaluator{schema: &models.SchemaError{Stage: "signals", Missing: []string{"rsi"}}}
	rec := serve(NewBacktestEchoHandler(nil, ev), "/api/signals")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SignalsResponse
	decode(t, rec, &body)
	assert.Empty(t, body.Rows)
	assert.Equal(t, []string{"signals: missing required fields: rsi"}, body.Diagnostics)
}

func TestBacktestDefaultsAndCache(t *testing.T) {
	ev := &stubEvaluator{}
	h := NewBacktestEchoHandler(nil, ev, WithCache(icache.NewTTLCache(), time.Minute))

	rec := serve(h, "/api/backtest?asset=btc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Nil(t, ev.lastParams.Threshold)
	assert.Zero(t, ev.lastParams.Window)

	var rep models.Report
	env := decode(t, rec, &rep)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, "r1", rep.RunID)
	require.Len(t, rep.Outcomes, 1)
	assert.True(t, rep.Outcomes[0].Success)

	rec = serve(h, "/api/backtest?asset=BTC")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, ev.reports)
}

func TestBacktestCustomKnobs(t *testing.T) {
	ev := &stubEvaluator{}
	rec := serve(NewBacktestEchoHandler(nil, ev), "/api/backtest?threshold=0.1&window=12")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ev.lastParams.Threshold)
	assert.Equal(t, 0.1, *ev.lastParams.Threshold)
	assert.Equal(t, 12, ev.lastParams.Window)
}

func TestBacktestExplicitZeroThreshold(t *testing.T) {
	ev := &stubEvaluator{}
	h := NewBacktestEchoHandler(nil, ev, WithCache(icache.NewTTLCache(), time.Minute))

	rec := serve(h, "/api/backtest?threshold=0")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ev.lastParams.Threshold)
	assert.Equal(t, 0.0, *ev.lastParams.Threshold)

	rec = serve(h, "/api/backtest?threshold=-0.02")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ev.lastParams.Threshold)
	assert.Equal(t, -0.02, *ev.lastParams.Threshold)

	// a defaulted request must not reuse the explicit-zero cache entry
	rec = serve(h, "/api/backtest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Nil(t, ev.lastParams.Threshold)
	assert.Equal(t, 3, ev.reports)
}

func TestBacktestRejectsBadInput(t *testing.T) {
	for _, target := range []string{
		"/api/backtest?threshold=-1",
		"/api/backtest?threshold=abc",
		"/api/backtest?window=5000",
		"/api/backtest?from=yesterday",
		"/api/backtest?from=2024-05-02&to=2024-05-01",
	} {
		rec := serve(NewBacktestEchoHandler(nil, &stubEvaluator{}), target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestBacktestUpstreamFailure(t *testing.T) {
	rec := serve(NewBacktestEchoHandler(nil, &stubEvaluator{err: errors.New("clickhouse down")}), "/api/backtest")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimited(t *testing.T) {
	h := NewBacktestEchoHandler(nil, &stubEvaluator{}, WithRateLimit(1, 0.001))
	assert.Equal(t, http.StatusOK, serve(h, "/api/signals").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "/api/signals").Code)
}
