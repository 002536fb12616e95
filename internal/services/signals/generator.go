// Package signals derives categorical trading signals from indicator snapshots.
package signals

import (
	"math"

	"SignalBot/internal/domain/models"
	domsvc "SignalBot/internal/domain/service"
	applogger "SignalBot/pkg/logger"
)

const stage = "signals"

// Default RSI bounds.
const (
	DefaultRSIOversold   = 30.0
	DefaultRSIOverbought = 70.0
)

// RequiredFields must be present in a snapshot batch for generation to run.
var RequiredFields = []string{
	models.FieldCurrentPrice,
	models.FieldRSI,
	models.FieldMACDDiff,
	models.FieldBBUpper,
	models.FieldBBLower,
}

// Generator evaluates the rule set over ordered snapshots, carrying the
// previous macd_diff per asset for zero-cross detection.
type Generator struct {
	oversold   float64
	overbought float64
	l          *applogger.Logger
}

type Option func(*Generator)

// WithRSIBounds overrides the oversold/overbought RSI thresholds.
func WithRSIBounds(oversold, overbought float64) Option {
	return func(g *Generator) {
		if oversold > 0 && overbought > oversold {
			g.oversold = oversold
			g.overbought = overbought
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.l = l
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		oversold:   DefaultRSIOversold,
		overbought: DefaultRSIOverbought,
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces one SignalRecord per snapshot, ordered by asset then
// timestamp. A batch missing a required field yields an empty result.
func (g *Generator) Generate(batch models.SnapshotBatch) models.Result[models.SignalRecord] {
	if missing := batch.Missing(RequiredFields...); len(missing) > 0 {
		g.l.Warn("signal generation skipped: missing required fields",
			applogger.Strings("missing", missing),
			applogger.Int("rows", len(batch.Rows)),
		)
		return models.SchemaFailure[models.SignalRecord](stage, missing)
	}

	rows := models.SortedByAssetTime(batch.Rows, models.SnapshotKey)
	out := make([]models.SignalRecord, 0, len(rows))

	// last macd_diff seen per asset; absent key means first row of the series
	prevMACD := make(map[string]float64)
	for _, row := range rows {
		prev, seen := prevMACD[row.AssetID]
		if !seen {
			prev = math.NaN()
		}
		out = append(out, models.SignalRecord{
			AssetID:   row.AssetID,
			Timestamp: row.Timestamp,
			Labels:    g.evaluate(row, prev),
			Source:    row,
		})
		prevMACD[row.AssetID] = row.MACDDiff
	}

	return models.Result[models.SignalRecord]{Items: out}
}

// evaluate applies the rules in their fixed order. Rows with any undefined
// reading get HOLD.
func (g *Generator) evaluate(s models.IndicatorSnapshot, prevMACD float64) models.Labels {
	labels := models.Labels{}
	if !s.Evaluable() {
		return labels
	}

	if s.RSI < g.oversold {
		labels = append(labels, models.TagBuyRSIOversold)
	}
	if s.RSI > g.overbought {
		labels = append(labels, models.TagSellRSIOverbought)
	}

	if models.Defined(prevMACD) {
		if prevMACD <= 0 && s.MACDDiff > 0 {
			labels = append(labels, models.TagBuyMACDCross)
		} else if prevMACD >= 0 && s.MACDDiff < 0 {
			labels = append(labels, models.TagSellMACDCross)
		}
	}

	if s.CurrentPrice > s.BBUpper {
		labels = append(labels, models.TagOverboughtVolatile)
	}
	if s.CurrentPrice < s.BBLower {
		labels = append(labels, models.TagPotentialBreakout)
	}
	return labels
}

// CountTags tallies tags across records; HOLD counts records with no tag.
func CountTags(records []models.SignalRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Labels.IsHold() {
			counts[models.TagHold]++
			continue
		}
		for _, tag := range r.Labels {
			counts[tag]++
		}
	}
	return counts
}

var _ domsvc.SignalGenerator = (*Generator)(nil)
