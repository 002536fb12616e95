// Package backtest scores buy-type signals against the prices that follow them.
package backtest

import (
	"math"

	"SignalBot/internal/domain/models"
	domsvc "SignalBot/internal/domain/service"
	applogger "SignalBot/pkg/logger"
)

const stage = "backtest"

const (
	DefaultThreshold = 0.05
	DefaultWindow    = 6
)

var (
	RequiredSignalFields = []string{models.FieldAssetID, models.FieldTimestamp, models.FieldSignal}
	RequiredPriceFields  = []string{models.FieldAssetID, models.FieldTimestamp, models.FieldPrice}
)

// Aligner locates an anchor price for every buy-type signal, takes the next
// window samples after it and labels the realized return.
type Aligner struct {
	threshold float64
	window    int
	l         *applogger.Logger
}

type Option func(*Aligner)

// WithThreshold sets the minimum return (fraction) counted as success.
// Zero and negative thresholds are valid; NaN and infinities are ignored.
func WithThreshold(th float64) Option {
	return func(a *Aligner) {
		if !math.IsNaN(th) && !math.IsInf(th, 0) {
			a.threshold = th
		}
	}
}

// WithWindow sets the number of forward samples considered.
func WithWindow(n int) Option {
	return func(a *Aligner) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(a *Aligner) {
		if l != nil {
			a.l = l
		}
	}
}

func NewAligner(opts ...Option) *Aligner {
	a := &Aligner{
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		l:         applogger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Factory adapts NewAligner to the domain AlignerFactory, sharing l.
func Factory(l *applogger.Logger) domsvc.AlignerFactory {
	return func(threshold float64, window int) domsvc.BacktestAligner {
		return NewAligner(WithThreshold(threshold), WithWindow(window), WithLogger(l))
	}
}

func (a *Aligner) Threshold() float64 { return a.threshold }

func (a *Aligner) Window() int { return a.window }

// Align evaluates every buy-type signal. Signals without an anchor or a
// forward window are excluded and counted; structural input failures
// return an empty result with a schema diagnostic.
func (a *Aligner) Align(signals models.SignalBatch, prices models.PriceBatch) models.Result[models.BacktestOutcome] {
	if missing := signals.Missing(RequiredSignalFields...); len(missing) > 0 {
		a.l.Warn("backtest skipped: signal input missing required fields", applogger.Strings("missing", missing))
		return models.SchemaFailure[models.BacktestOutcome](stage, missing)
	}
	if missing := prices.Missing(RequiredPriceFields...); len(missing) > 0 {
		a.l.Warn("backtest skipped: price input missing required fields", applogger.Strings("missing", missing))
		return models.SchemaFailure[models.BacktestOutcome](stage, missing)
	}

	idx := newPriceIndex(prices.Rows)
	res := models.Result[models.BacktestOutcome]{
		Items:    []models.BacktestOutcome{},
		Excluded: map[models.ExclusionReason]int{},
	}

	for _, sig := range models.SortedByAssetTime(signals.Rows, models.SignalKey) {
		if !sig.Labels.IsBuy() {
			continue
		}
		out, reason, ok := a.evaluate(idx, sig)
		if !ok {
			res.Excluded[reason]++
			a.l.Debug("signal excluded",
				applogger.String("asset_id", sig.AssetID),
				applogger.Time("timestamp", sig.Timestamp),
				applogger.String("reason", string(reason)),
			)
			continue
		}
		res.Items = append(res.Items, out)
	}
	return res
}

func (a *Aligner) evaluate(idx priceIndex, sig models.SignalRecord) (models.BacktestOutcome, models.ExclusionReason, bool) {
	pos, ok := idx.anchor(sig.AssetID, sig.Timestamp)
	if !ok {
		return models.BacktestOutcome{}, models.ExcludedNoAnchor, false
	}
	future := idx.forward(sig.AssetID, pos, a.window)
	if len(future) == 0 {
		return models.BacktestOutcome{}, models.ExcludedNoForwardWindow, false
	}

	anchor := idx.at(sig.AssetID, pos)
	maxPrice, ok := maxFinite(future)
	if !ok || !usablePrice(anchor.Price) {
		return models.BacktestOutcome{}, models.ExcludedInvalidPrice, false
	}
	ret := (maxPrice - anchor.Price) / anchor.Price
	if math.IsNaN(ret) || math.IsInf(ret, 0) {
		return models.BacktestOutcome{}, models.ExcludedInvalidPrice, false
	}

	return models.BacktestOutcome{
		AssetID:        sig.AssetID,
		SignalTime:     sig.Timestamp,
		Labels:         sig.Labels,
		AnchorTime:     anchor.Timestamp,
		AnchorPrice:    anchor.Price,
		MaxFuturePrice: maxPrice,
		ReturnPct:      ret,
		Success:        ret >= a.threshold,
		WindowLen:      len(future),
	}, "", true
}

func usablePrice(p float64) bool {
	return p != 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// maxFinite skips undefined prices; ok is false when none are usable.
func maxFinite(points []models.PricePoint) (float64, bool) {
	best, found := 0.0, false
	for _, p := range points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		if !found || p.Price > best {
			best, found = p.Price, true
		}
	}
	return best, found
}

var _ domsvc.BacktestAligner = (*Aligner)(nil)
