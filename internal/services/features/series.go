package features

import "math"

// ewm is an exponentially weighted mean with recursive (non-adjusted)
// weighting: y0 = x0, yt = (1-alpha)*y(t-1) + alpha*xt. Leading NaNs are
// skipped; outputs are NaN until minPeriods observations have been seen.
func ewm(xs []float64, alpha float64, minPeriods int) []float64 {
	out := make([]float64, len(xs))
	var y float64
	seen := 0
	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = math.NaN()
			continue
		}
		if seen == 0 {
			y = x
		} else {
			y = (1-alpha)*y + alpha*x
		}
		seen++
		if seen < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = y
	}
	return out
}

// ema uses the span convention alpha = 2/(span+1).
func ema(xs []float64, span int) []float64 {
	return ewm(xs, 2/float64(span+1), span)
}

// rollingMeanStd returns the trailing mean and population standard
// deviation over window samples.
func rollingMeanStd(xs []float64, window int) (mean, std []float64) {
	mean = make([]float64, len(xs))
	std = make([]float64, len(xs))
	for i := range xs {
		if i+1 < window {
			mean[i], std[i] = math.NaN(), math.NaN()
			continue
		}
		sum := 0.0
		for _, x := range xs[i+1-window : i+1] {
			sum += x
		}
		m := sum / float64(window)
		ss := 0.0
		for _, x := range xs[i+1-window : i+1] {
			ss += (x - m) * (x - m)
		}
		mean[i] = m
		std[i] = math.Sqrt(ss / float64(window))
	}
	return mean, std
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
