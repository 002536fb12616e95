package features

import (
	"math"
	"testing"
	"time"

	"SignalBot/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func points(asset string, prices ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{AssetID: asset, Timestamp: t0.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestEMARecursiveWeights(t *testing.T) {
	got := ema([]float64{1, 2, 3}, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 5.0/3, got[1], 1e-12)
	assert.InDelta(t, 23.0/9, got[2], 1e-12)
}

func TestEWMSkipsLeadingUndefined(t *testing.T) {
	got := ewm([]float64{math.NaN(), math.NaN(), 4, 8}, 0.5, 1)
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 4.0, got[2])
	assert.Equal(t, 6.0, got[3])
}

func TestRSIBounds(t *testing.T) {
	rising := RSI(ramp(20, 100, 1), 14)
	assert.True(t, math.IsNaN(rising[12]))
	assert.Equal(t, 100.0, rising[13])
	assert.Equal(t, 100.0, rising[19])

	falling := RSI(ramp(20, 100, -1), 14)
	assert.InDelta(t, 0, falling[19], 1e-9)
}

func TestBollingerPopulationStd(t *testing.T) {
	upper, lower := Bollinger([]float64{1, 3, 1, 3}, 2, 2)
	assert.True(t, math.IsNaN(upper[0]))
	// mean 2, population std 1
	assert.InDelta(t, 4, upper[1], 1e-12)
	assert.InDelta(t, 0, lower[1], 1e-12)
	assert.InDelta(t, 4, upper[3], 1e-12)
}

func TestMACDDiffFlatSeriesIsZero(t *testing.T) {
	got := MACDDiff(ramp(40, 50, 0), 12, 26, 9)
	assert.True(t, math.IsNaN(got[32]))
	assert.InDelta(t, 0, got[33], 1e-12)
	assert.InDelta(t, 0, got[39], 1e-12)
}

func TestComputeShortHistoryLeavesIndicatorsUndefined(t *testing.T) {
	snaps := Compute(points("X", ramp(14, 100, 1)...), DefaultParams())
	require.Len(t, snaps, 14)
	for _, s := range snaps {
		assert.True(t, math.IsNaN(s.RSI))
		assert.True(t, math.IsNaN(s.EMA20))
		assert.True(t, math.IsNaN(s.MACDDiff))
		assert.False(t, s.Evaluable())
	}
	assert.Equal(t, 113.0, snaps[13].CurrentPrice)
}

func TestComputePartialHistory(t *testing.T) {
	snaps := Compute(points("X", ramp(21, 100, 1)...), DefaultParams())
	require.Len(t, snaps, 21)

	last := snaps[20]
	assert.False(t, math.IsNaN(last.RSI))
	assert.False(t, math.IsNaN(last.EMA20))
	assert.False(t, math.IsNaN(last.BBUpper))
	assert.True(t, math.IsNaN(last.MACDDiff))
	assert.True(t, math.IsNaN(snaps[18].EMA20))
}

func TestComputeFullHistoryIsEvaluable(t *testing.T) {
	snaps := Compute(points("X", ramp(60, 100, 0.5)...), DefaultParams())
	require.Len(t, snaps, 60)
	assert.False(t, snaps[32].Evaluable())
	assert.True(t, snaps[33].Evaluable())
	assert.Greater(t, snaps[59].BBUpper, snaps[59].BBLower)
}

func TestComputeGroupsByAsset(t *testing.T) {
	var in []models.PricePoint
	a, b := points("A", 1, 2, 3), points("B", 10, 20)
	in = append(in, b[1], a[2], b[0], a[0], a[1])

	snaps := Compute(in, DefaultParams())
	require.Len(t, snaps, 5)
	assert.Equal(t, "A", snaps[0].AssetID)
	assert.Equal(t, 1.0, snaps[0].CurrentPrice)
	assert.Equal(t, 3.0, snaps[2].CurrentPrice)
	assert.Equal(t, "B", snaps[3].AssetID)
	assert.Equal(t, 20.0, snaps[4].CurrentPrice)
}

func TestTALibEngineWarmup(t *testing.T) {
	p := DefaultParams()
	p.Engine = EngineTALib
	snaps := Compute(points("X", ramp(60, 100, 0.5)...), p)
	require.Len(t, snaps, 60)

	assert.True(t, math.IsNaN(snaps[13].RSI))
	assert.InDelta(t, 100, snaps[20].RSI, 1e-9)
	assert.True(t, math.IsNaN(snaps[18].EMA20))
	assert.False(t, math.IsNaN(snaps[19].EMA20))
	assert.False(t, snaps[32].Evaluable())
	assert.True(t, snaps[33].Evaluable())
	assert.Greater(t, snaps[59].BBUpper, snaps[59].BBLower)
}

func TestEnginesAgreeOnFlatSeries(t *testing.T) {
	closes := points("X", ramp(60, 50, 0)...)
	native := Compute(closes, DefaultParams())
	p := DefaultParams()
	p.Engine = EngineTALib
	ta := Compute(closes, p)

	last := len(closes) - 1
	assert.InDelta(t, native[last].EMA20, ta[last].EMA20, 1e-9)
	assert.InDelta(t, native[last].BBUpper, ta[last].BBUpper, 1e-9)
	assert.InDelta(t, native[last].MACDDiff, ta[last].MACDDiff, 1e-9)
}
