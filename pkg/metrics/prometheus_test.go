package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordSignals("BUY_MACD_CROSS", 3)
	r.RecordSignals("HOLD", 0)
	r.RecordOutcome(true)
	r.RecordOutcome(true)
	r.RecordOutcome(false)
	r.RecordExclusion("no_anchor", 2)
	r.RecordSchemaError("signals")
	r.RecordError("source")
	r.RecordLatency("generate", 0.01)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.signals.WithLabelValues("BUY_MACD_CROSS")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.exclusions.WithLabelValues("no_anchor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.schemaErrs.WithLabelValues("signals")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
	// HOLD with n=0 never creates a series
	assert.Equal(t, 1, testutil.CollectAndCount(r.signals))
}

func TestRecorderRegistriesAreIndependent(t *testing.T) {
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())
	a.RecordError("x")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.errorsTotal.WithLabelValues("x")))
}
