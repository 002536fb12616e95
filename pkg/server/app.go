package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	"SignalBot/internal/usecase"
	"SignalBot/pkg/config"
	xhttp "SignalBot/pkg/http"
	applogger "SignalBot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the application lifecycle for both batch and serve modes.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	pipeline *usecase.Pipeline
	query    domrepo.Query
	registry *prometheus.Registry
	handlers []xhttp.Handler
	closers  []closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	query domrepo.Query,
	registry *prometheus.Registry,
	handlers ...xhttp.Handler,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		l:        l,
		pipeline: pipeline,
		query:    query,
		registry: registry,
		handlers: handlers,
	}
}

// OnClose registers a resource released by Close, in reverse order.
func (a *App) OnClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Logger exposes the application logger to the CLI.
func (a *App) Logger() *applogger.Logger { return a.l }

func (a *App) params(threshold *float64, window int, assets []string) usecase.Params {
	q := a.query
	if len(assets) > 0 {
		q.Assets = assets
	}
	return usecase.Params{Query: q, Threshold: threshold, Window: window}
}

// RunOnce performs one full batch pass. A nil threshold and a zero window use
// the configured defaults.
func (a *App) RunOnce(ctx context.Context, threshold *float64, window int, assets []string) (models.Report, error) {
	return a.pipeline.Run(ctx, a.params(threshold, window, assets))
}

// Backtest re-scores persisted signals without regenerating them.
func (a *App) Backtest(ctx context.Context, threshold *float64, window int, assets []string) (models.Report, error) {
	return a.pipeline.Backtest(ctx, a.params(threshold, window, assets))
}

// Serve runs the HTTP API until ctx is done or SIGINT/SIGTERM arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsPath := a.cfg.Metrics.Path
	if !a.cfg.Metrics.Enabled {
		metricsPath = ""
	}
	srv := xhttp.NewServer(a.handlers,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(a.cfg.Server.SlowRequest),
		xhttp.WithCORS(a.cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithRegistry(a.registry),
		xhttp.WithLogger(a.l),
	)
	if err := srv.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")

	// the serve context is already cancelled; shutdown gets its own deadline
	if err := srv.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	return nil
}

// Close releases the publisher and infrastructure clients.
func (a *App) Close() error {
	var errs []error
	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
