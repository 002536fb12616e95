package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signalbot"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals     *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	exclusions  *prometheus.CounterVec
	schemaErrs  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Generated signal records by tag",
		}, []string{"tag"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtest_outcomes_total",
			Help:      "Evaluated buy signals by success label",
		}, []string{"success"}),
		exclusions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtest_exclusions_total",
			Help:      "Buy signals excluded from evaluation by reason",
		}, []string{"reason"}),
		schemaErrs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_errors_total",
			Help:      "Stage runs rejected for missing input fields",
		}, []string{"stage"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordSignals(tag string, n int) {
	if n > 0 {
		r.signals.WithLabelValues(tag).Add(float64(n))
	}
}

func (r *Recorder) RecordOutcome(success bool) {
	r.outcomes.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (r *Recorder) RecordExclusion(reason string, n int) {
	if n > 0 {
		r.exclusions.WithLabelValues(reason).Add(float64(n))
	}
}

func (r *Recorder) RecordSchemaError(stage string) {
	r.schemaErrs.WithLabelValues(stage).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSignals(string, int) {}
func (Nop) RecordOutcome(bool) {}
func (Nop) RecordExclusion(string, int) {}
func (Nop) RecordSchemaError(string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
