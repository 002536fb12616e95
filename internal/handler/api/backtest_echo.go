package api

import (
	"context"
	"strconv"
	"time"

	models "SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	icache "SignalBot/internal/service/cache"
	"SignalBot/internal/service/ratelimit"
	"SignalBot/internal/usecase"
	xhttp "SignalBot/pkg/http"
	xlogger "SignalBot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Evaluator is the part of the pipeline the API serves.
type Evaluator interface {
	Signals(ctx context.Context, q domrepo.Query) (models.Result[models.SignalRecord], error)
	Report(ctx context.Context, params usecase.Params) (models.Report, error)
}

// SignalsResponse lists generated signals for a query.
type SignalsResponse struct {
	Rows        []models.SignalRecord `json:"rows"`
	Total       int                   `json:"total"`
	Range       xhttp.TimeRange       `json:"range"`
	Diagnostics []string              `json:"diagnostics,omitempty"`
}

// BacktestEchoHandler serves signals and backtest reports.
type BacktestEchoHandler struct {
	logger *xlogger.Logger
	eval   Evaluator
	base   domrepo.Query

	cache    icache.BytesCache
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
	rlCap    float64
	rlRefill float64
}

type HandlerOption func(*BacktestEchoHandler)

// WithCache caches report envelopes for ttl.
func WithCache(c icache.BytesCache, ttl time.Duration) HandlerOption {
	return func(h *BacktestEchoHandler) {
		if c != nil && ttl > 0 {
			h.cache = c
			h.cacheTTL = ttl
		}
	}
}

// WithBaseQuery sets the selection used when a request leaves it open.
func WithBaseQuery(q domrepo.Query) HandlerOption {
	return func(h *BacktestEchoHandler) { h.base = q }
}

// WithRateLimit limits each client to capacity requests refilled at perSec.
func WithRateLimit(capacity, perSec float64) HandlerOption {
	return func(h *BacktestEchoHandler) {
		if capacity > 0 && perSec > 0 {
			h.rlCap, h.rlRefill = capacity, perSec
		}
	}
}

func NewBacktestEchoHandler(logger *xlogger.Logger, eval Evaluator, opts ...HandlerOption) *BacktestEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &BacktestEchoHandler{
		logger:   logger,
		eval:     eval,
		rl:       ratelimit.New(),
		rlCap:    10,
		rlRefill: 2,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BacktestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/backtest", h.Backtest)
}

func (h *BacktestEchoHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl.Allow(c.RealIP()+":"+endpoint, h.rlCap, h.rlRefill) {
		return true
	}
	h.logger.Warn("api rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
	return false
}

func (h *BacktestEchoHandler) query(asset, from, to string) (domrepo.Query, error) {
	q := h.base.ForAsset(asset)
	f, err := xhttp.ParseTimeParam("from", from)
	if err != nil {
		return q, err
	}
	t, err := xhttp.ParseTimeParam("to", to)
	if err != nil {
		return q, err
	}
	if !f.IsZero() {
		q.From = f
	}
	if !t.IsZero() {
		q.To = t
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, xhttp.InvalidParamError("ERR_INVALID_RANGE", "to", "to must not be before from")
	}
	return q, nil
}

func (h *BacktestEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := h.query(req.Asset, req.From, req.To)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if !h.allow(c, "signals") {
		return xhttp.AppErrorResponse(c, xhttp.RateLimitedError("signals"))
	}

	res, err := h.eval.Signals(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("signals usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("signal source unavailable").WithError(err))
	}

	out := SignalsResponse{Total: len(res.Items), Range: xhttp.NewTimeRange(q.From, q.To), Rows: res.Items}
	if len(out.Rows) > req.Limit {
		// newest rows are the interesting ones
		out.Rows = out.Rows[len(out.Rows)-req.Limit:]
	}
	if res.Schema != nil {
		out.Diagnostics = []string{res.Schema.Error()}
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *BacktestEchoHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := h.query(req.Asset, req.From, req.To)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	params := usecase.Params{Query: q, Window: req.Window}
	threshold := "default"
	if c.QueryParams().Has("threshold") {
		params.Threshold = usecase.Threshold(req.Threshold)
		threshold = strconv.FormatFloat(req.Threshold, 'g', -1, 64)
	}

	key := icache.Key("backtest", req.Asset, req.From, req.To, threshold, strconv.Itoa(req.Window))
	if b, ok := h.cached(c.Request().Context(), key); ok {
		return xhttp.BlobResponse(c, b, true)
	}
	if !h.allow(c, "backtest") {
		return xhttp.AppErrorResponse(c, xhttp.RateLimitedError("backtest"))
	}

	rep, err := h.eval.Report(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("backtest usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("backtest inputs unavailable").WithError(err))
	}

	b, err := xhttp.MarshalSuccess(rep)
	if err != nil {
		h.logger.Error("backtest marshal error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	h.store(c.Request().Context(), key, b)
	return xhttp.BlobResponse(c, b, false)
}

func (h *BacktestEchoHandler) cached(ctx context.Context, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(ctx, key)
	if err != nil {
		h.logger.Warn("report cache get error", xlogger.String("key", key), xlogger.Error(err))
		return nil, false
	}
	if ok {
		h.logger.Debug("report cache hit", xlogger.String("key", key))
	}
	return b, ok
}

func (h *BacktestEchoHandler) store(ctx context.Context, key string, b []byte) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetBytes(ctx, key, b, h.cacheTTL); err != nil {
		h.logger.Warn("report cache set error", xlogger.String("key", key), xlogger.Error(err))
	}
}

var _ xhttp.Handler = (*BacktestEchoHandler)(nil)
