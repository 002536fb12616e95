package features

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

type calculator interface {
	rsi(closes []float64, window int) []float64
	ema(closes []float64, window int) []float64
	bollinger(closes []float64, window int, dev float64) (upper, lower []float64)
	macdDiff(closes []float64, fast, slow, signal int) []float64
}

type nativeCalc struct{}

func (nativeCalc) rsi(closes []float64, window int) []float64 { return RSI(closes, window) }
func (nativeCalc) ema(closes []float64, window int) []float64 { return ema(closes, window) }

func (nativeCalc) bollinger(closes []float64, window int, dev float64) ([]float64, []float64) {
	return Bollinger(closes, window, dev)
}

func (nativeCalc) macdDiff(closes []float64, fast, slow, signal int) []float64 {
	return MACDDiff(closes, fast, slow, signal)
}

// talibCalc fills the lookback rows go-talib leaves at zero with NaN.
type talibCalc struct{}

func (talibCalc) rsi(closes []float64, window int) []float64 {
	return masked(talib.Rsi(closes, window), window)
}

func (talibCalc) ema(closes []float64, window int) []float64 {
	return masked(talib.Ema(closes, window), window-1)
}

func (talibCalc) bollinger(closes []float64, window int, dev float64) ([]float64, []float64) {
	upper, _, lower := talib.BBands(closes, window, dev, dev, talib.SMA)
	return masked(upper, window-1), masked(lower, window-1)
}

func (talibCalc) macdDiff(closes []float64, fast, slow, signal int) []float64 {
	_, _, hist := talib.Macd(closes, fast, slow, signal)
	return masked(hist, slow-1+signal-1)
}

func masked(xs []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(xs); i++ {
		xs[i] = math.NaN()
	}
	return xs
}
