// Package features derives indicator snapshots from raw price history.
package features

import (
	"math"

	"SignalBot/internal/domain/models"
)

// Engine selects the indicator implementation.
type Engine string

const (
	// EngineNative seeds every exponential average with the first
	// observation.
	EngineNative Engine = "native"
	// EngineTALib delegates to go-talib, which seeds with a simple average
	// of the first window.
	EngineTALib Engine = "talib"
)

// Params are the indicator windows. The zero value is not usable; start
// from DefaultParams.
type Params struct {
	Engine     Engine
	RSIWindow  int
	EMAWindow  int
	BBWindow   int
	BBDev      float64
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

func DefaultParams() Params {
	return Params{Engine: EngineNative, RSIWindow: 14, EMAWindow: 20, BBWindow: 20, BBDev: 2, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}
}

// Compute produces one snapshot per price, per asset in timestamp order.
// An indicator stays undefined for the whole series when the series is not
// longer than its window, and for the warm-up rows otherwise.
func Compute(prices []models.PricePoint, p Params) []models.IndicatorSnapshot {
	sorted := models.SortedByAssetTime(prices, models.PriceKey)
	out := make([]models.IndicatorSnapshot, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].AssetID == sorted[start].AssetID {
			end++
		}
		out = append(out, computeSeries(sorted[start:end], p)...)
		start = end
	}
	return out
}

func computeSeries(points []models.PricePoint, p Params) []models.IndicatorSnapshot {
	n := len(points)
	closes := make([]float64, n)
	for i, pt := range points {
		closes[i] = pt.Price
	}

	var calc calculator = nativeCalc{}
	if p.Engine == EngineTALib {
		calc = talibCalc{}
	}

	rsi, emaN, upper, lower, macd := nanSeries(n), nanSeries(n), nanSeries(n), nanSeries(n), nanSeries(n)
	if n > p.RSIWindow {
		rsi = calc.rsi(closes, p.RSIWindow)
		if n > p.EMAWindow {
			emaN = calc.ema(closes, p.EMAWindow)
		}
		if n > p.BBWindow {
			upper, lower = calc.bollinger(closes, p.BBWindow, p.BBDev)
		}
		if n > p.MACDSlow {
			macd = calc.macdDiff(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
		}
	}

	out := make([]models.IndicatorSnapshot, n)
	for i, pt := range points {
		out[i] = models.IndicatorSnapshot{
			AssetID:      pt.AssetID,
			Timestamp:    pt.Timestamp,
			CurrentPrice: pt.Price,
			RSI:          rsi[i],
			EMA20:        emaN[i],
			MACDDiff:     macd[i],
			BBUpper:      upper[i],
			BBLower:      lower[i],
		}
	}
	return out
}

// RSI uses Wilder smoothing (alpha = 1/window). The first difference is
// taken as zero movement.
func RSI(closes []float64, window int) []float64 {
	n := len(closes)
	up := make([]float64, n)
	down := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			up[i] = d
		} else if d < 0 {
			down[i] = -d
		}
	}
	alpha := 1 / float64(window)
	avgUp := ewm(up, alpha, window)
	avgDown := ewm(down, alpha, window)

	out := make([]float64, n)
	for i := range out {
		switch {
		case math.IsNaN(avgUp[i]) || math.IsNaN(avgDown[i]):
			out[i] = math.NaN()
		case avgDown[i] == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+avgUp[i]/avgDown[i])
		}
	}
	return out
}

// Bollinger returns mean ± dev population standard deviations.
func Bollinger(closes []float64, window int, dev float64) (upper, lower []float64) {
	mean, std := rollingMeanStd(closes, window)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = mean[i] + dev*std[i]
		lower[i] = mean[i] - dev*std[i]
	}
	return upper, lower
}

// MACDDiff is the MACD histogram: (fast EMA - slow EMA) minus its signal EMA.
func MACDDiff(closes []float64, fast, slow, signal int) []float64 {
	f := ema(closes, fast)
	s := ema(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	sig := ema(line, signal)
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = line[i] - sig[i]
	}
	return out
}
