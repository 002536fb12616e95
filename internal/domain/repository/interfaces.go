package repository

import (
	"context"

	"SignalBot/internal/domain/models"
)

// SnapshotSource loads indicator snapshots together with the fields the
// underlying source provided.
type SnapshotSource interface {
	LoadSnapshots(ctx context.Context, q Query) (models.SnapshotBatch, error)
}

// PriceSource loads raw price series.
type PriceSource interface {
	LoadPrices(ctx context.Context, q Query) (models.PriceBatch, error)
}

// SignalSource reloads previously persisted signals.
type SignalSource interface {
	LoadSignals(ctx context.Context, q Query) (models.SignalBatch, error)
}

// Archive keeps a copy of fetched prices and computed snapshots.
type Archive interface {
	SavePrices(ctx context.Context, prices []models.PricePoint) error
	SaveSnapshots(ctx context.Context, snapshots []models.IndicatorSnapshot) error
}

// SignalSink persists generated signals.
type SignalSink interface {
	SaveSignals(ctx context.Context, runID string, signals []models.SignalRecord) error
}

// OutcomeStore persists backtest outcomes as one batch.
type OutcomeStore interface {
	SaveOutcomes(ctx context.Context, runID string, outcomes []models.BacktestOutcome) error
}

// Publisher emits outcome events downstream.
type Publisher interface {
	PublishOutcomes(ctx context.Context, runID string, outcomes []models.BacktestOutcome) error
	Close() error
}

type Metrics interface {
	RecordSignals(tag string, n int)
	RecordOutcome(success bool)
	RecordExclusion(reason string, n int)
	RecordSchemaError(stage string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// FeatureLog accumulates indicator rows with their signal labels across
// runs, keeping the first row seen per (asset, timestamp).
type FeatureLog interface {
	AppendFeatures(ctx context.Context, signals []models.SignalRecord) error
}
