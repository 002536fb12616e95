package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	domsvc "SignalBot/internal/domain/service"
	"SignalBot/internal/services/backtest"
	"SignalBot/internal/services/signals"
	applogger "SignalBot/pkg/logger"
	"SignalBot/pkg/metrics"

	"github.com/google/uuid"
)

// ErrNoSignals is returned by Backtest when the signal source holds nothing
// to re-score.
var ErrNoSignals = errors.New("no persisted signals")

// Params selects the history and knobs for one evaluation. A nil Threshold
// and a zero Window fall back to the pipeline defaults; zero and negative
// thresholds are honored.
type Params struct {
	Query     domrepo.Query
	Threshold *float64
	Window    int
}

// Threshold wraps v for Params.
func Threshold(v float64) *float64 { return &v }

// Pipeline wires sources, the core stages and sinks into batch passes.
type Pipeline struct {
	snapshots domrepo.SnapshotSource
	prices    domrepo.PriceSource
	persisted domrepo.SignalSource
	sink      domrepo.SignalSink
	outcomes  domrepo.OutcomeStore
	features  domrepo.FeatureLog
	publisher domrepo.Publisher

	generator domsvc.SignalGenerator
	aligners  domsvc.AlignerFactory

	threshold float64
	window    int
	timeout   time.Duration

	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
	runID   func() string
}

type Option func(*Pipeline)

func WithSignalSource(src domrepo.SignalSource) Option {
	return func(p *Pipeline) { p.persisted = src }
}

func WithSignalSink(s domrepo.SignalSink) Option {
	return func(p *Pipeline) { p.sink = s }
}

func WithOutcomeStore(s domrepo.OutcomeStore) Option {
	return func(p *Pipeline) { p.outcomes = s }
}

// WithFeatureLog appends every generated signal with its indicator row.
func WithFeatureLog(f domrepo.FeatureLog) Option {
	return func(p *Pipeline) { p.features = f }
}

func WithPublisher(pub domrepo.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithDefaults sets the threshold and window used when Params leaves them unset.
func WithDefaults(threshold float64, window int) Option {
	return func(p *Pipeline) {
		if !math.IsNaN(threshold) && !math.IsInf(threshold, 0) {
			p.threshold = threshold
		}
		if window > 0 {
			p.window = window
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func NewPipeline(
	snapshots domrepo.SnapshotSource,
	prices domrepo.PriceSource,
	generator domsvc.SignalGenerator,
	aligners domsvc.AlignerFactory,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		snapshots: snapshots,
		prices:    prices,
		generator: generator,
		aligners:  aligners,
		publisher: noPublisher{},
		threshold: backtest.DefaultThreshold,
		window:    backtest.DefaultWindow,
		timeout:   2 * time.Minute,
		metrics:   metrics.Nop{},
		l:         applogger.Nop(),
		now:       time.Now,
		runID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) knobs(params Params) (float64, int) {
	threshold, window := p.threshold, params.Window
	if params.Threshold != nil {
		threshold = *params.Threshold
	}
	if window <= 0 {
		window = p.window
	}
	return threshold, window
}

// Signals runs the generator only.
func (p *Pipeline) Signals(ctx context.Context, q domrepo.Query) (models.Result[models.SignalRecord], error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snaps, err := p.loadSnapshots(ctx, q)
	if err != nil {
		return models.Result[models.SignalRecord]{}, err
	}
	return p.generate(snaps), nil
}

// Evaluate runs load, generate and align without side effects on the sinks.
func (p *Pipeline) Evaluate(ctx context.Context, params Params) (backtest.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snaps, err := p.loadSnapshots(ctx, params.Query)
	if err != nil {
		return backtest.Run{}, err
	}
	sigs := p.generate(snaps)

	run := p.newRun(params)
	run.Snapshots = len(snaps.Rows)
	run.Signals = sigs.Items
	if sigs.Schema != nil {
		run.Diagnostics = append(run.Diagnostics, sigs.Schema.Error())
	}

	prices, err := p.loadPrices(ctx, params.Query.Unbounded())
	if err != nil {
		return backtest.Run{}, err
	}
	run.Outcomes = p.align(run, models.NewSignalBatch(sigs.Items), prices)
	return run, nil
}

// Report evaluates and summarizes.
func (p *Pipeline) Report(ctx context.Context, params Params) (models.Report, error) {
	run, err := p.Evaluate(ctx, params)
	if err != nil {
		return models.Report{}, err
	}
	return backtest.Summarize(run), nil
}

// Backtest re-scores signals persisted by an earlier run, then persists and
// publishes the new outcomes.
func (p *Pipeline) Backtest(ctx context.Context, params Params) (models.Report, error) {
	if p.persisted == nil {
		return models.Report{}, fmt.Errorf("backtest: no signal source configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var sigs models.SignalBatch
	if err := p.timed("load_signals", func() (err error) {
		sigs, err = p.persisted.LoadSignals(ctx, params.Query)
		return err
	}); err != nil {
		return models.Report{}, fmt.Errorf("load signals: %w", err)
	}
	if len(sigs.Rows) == 0 {
		return models.Report{}, fmt.Errorf("backtest: %w", ErrNoSignals)
	}
	prices, err := p.loadPrices(ctx, params.Query.Unbounded())
	if err != nil {
		return models.Report{}, err
	}

	run := p.newRun(params)
	run.Signals = sigs.Rows
	run.Outcomes = p.align(run, sigs, prices)
	if err := p.persistOutcomes(ctx, run); err != nil {
		return models.Report{}, err
	}

	rep := backtest.Summarize(run)
	p.logReport("backtest complete", rep)
	return rep, nil
}

// Run is one full batch pass: evaluate, persist signals, append the feature
// log, then persist and publish outcomes.
func (p *Pipeline) Run(ctx context.Context, params Params) (models.Report, error) {
	run, err := p.Evaluate(ctx, params)
	if err != nil {
		return models.Report{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.sink != nil && len(run.Signals) > 0 {
		if err := p.timed("save_signals", func() error {
			return p.sink.SaveSignals(ctx, run.RunID, run.Signals)
		}); err != nil {
			return models.Report{}, fmt.Errorf("save signals: %w", err)
		}
	}
	if p.features != nil && len(run.Signals) > 0 {
		if err := p.timed("save_features", func() error {
			return p.features.AppendFeatures(ctx, run.Signals)
		}); err != nil {
			return models.Report{}, fmt.Errorf("save features: %w", err)
		}
	}
	if err := p.persistOutcomes(ctx, run); err != nil {
		return models.Report{}, err
	}

	rep := backtest.Summarize(run)
	p.logReport("run complete", rep)
	return rep, nil
}

// persistOutcomes stores and publishes the outcomes of run.
func (p *Pipeline) persistOutcomes(ctx context.Context, run backtest.Run) error {
	// an empty outcome table is still written so readers see this run
	if p.outcomes != nil && run.Outcomes.OK() {
		if err := p.timed("save_outcomes", func() error {
			return p.outcomes.SaveOutcomes(ctx, run.RunID, run.Outcomes.Items)
		}); err != nil {
			return fmt.Errorf("save outcomes: %w", err)
		}
	}
	if err := p.timed("publish", func() error {
		return p.publisher.PublishOutcomes(ctx, run.RunID, run.Outcomes.Items)
	}); err != nil {
		return fmt.Errorf("publish outcomes: %w", err)
	}
	return nil
}

func (p *Pipeline) logReport(msg string, rep models.Report) {
	p.l.Info(msg,
		applogger.String("run_id", rep.RunID),
		applogger.Int("snapshots", rep.Snapshots),
		applogger.Int("signals", rep.Signals),
		applogger.Int("buy_signals", rep.BuySignals),
		applogger.Int("evaluated", rep.Evaluated),
		applogger.Float64("hit_rate", rep.HitRate),
	)
}

// Close releases the publisher.
func (p *Pipeline) Close() error { return p.publisher.Close() }

func (p *Pipeline) newRun(params Params) backtest.Run {
	threshold, window := p.knobs(params)
	return backtest.Run{
		RunID:       p.runID(),
		GeneratedAt: p.now().UTC(),
		Threshold:   threshold,
		Window:      window,
	}
}

func (p *Pipeline) loadSnapshots(ctx context.Context, q domrepo.Query) (models.SnapshotBatch, error) {
	var batch models.SnapshotBatch
	err := p.timed("load_snapshots", func() (err error) {
		batch, err = p.snapshots.LoadSnapshots(ctx, q)
		return err
	})
	if err != nil {
		return models.SnapshotBatch{}, fmt.Errorf("load snapshots: %w", err)
	}
	return batch, nil
}

func (p *Pipeline) loadPrices(ctx context.Context, q domrepo.Query) (models.PriceBatch, error) {
	var batch models.PriceBatch
	err := p.timed("load_prices", func() (err error) {
		batch, err = p.prices.LoadPrices(ctx, q)
		return err
	})
	if err != nil {
		return models.PriceBatch{}, fmt.Errorf("load prices: %w", err)
	}
	return batch, nil
}

func (p *Pipeline) generate(snaps models.SnapshotBatch) models.Result[models.SignalRecord] {
	start := time.Now()
	res := p.generator.Generate(snaps)
	p.metrics.RecordLatency("generate", time.Since(start).Seconds())

	if res.Schema != nil {
		p.metrics.RecordSchemaError(res.Schema.Stage)
		return res
	}
	for tag, n := range signals.CountTags(res.Items) {
		p.metrics.RecordSignals(tag, n)
	}
	return res
}

func (p *Pipeline) align(run backtest.Run, sigs models.SignalBatch, prices models.PriceBatch) models.Result[models.BacktestOutcome] {
	start := time.Now()
	res := p.aligners(run.Threshold, run.Window).Align(sigs, prices)
	p.metrics.RecordLatency("align", time.Since(start).Seconds())

	if res.Schema != nil {
		p.metrics.RecordSchemaError(res.Schema.Stage)
		return res
	}
	for _, o := range res.Items {
		p.metrics.RecordOutcome(o.Success)
	}
	for reason, n := range res.Excluded {
		p.metrics.RecordExclusion(string(reason), n)
	}
	return res
}

func (p *Pipeline) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.RecordLatency(op, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordError(op)
		p.l.Error("pipeline step failed", applogger.String("op", op), applogger.Error(err))
	}
	return err
}

type noPublisher struct{}

func (noPublisher) PublishOutcomes(context.Context, string, []models.BacktestOutcome) error {
	return nil
}

func (noPublisher) Close() error { return nil }
