package service

import (
	"context"

	"SignalBot/internal/domain/models"
)

// SignalGenerator converts ordered indicator snapshots into signal records.
type SignalGenerator interface {
	Generate(batch models.SnapshotBatch) models.Result[models.SignalRecord]
}

// BacktestAligner scores buy-type signals against subsequent prices.
type BacktestAligner interface {
	Align(signals models.SignalBatch, prices models.PriceBatch) models.Result[models.BacktestOutcome]
}

// AlignerFactory builds an aligner for a threshold and forward window.
type AlignerFactory func(threshold float64, window int) BacktestAligner

// MarketHistory fetches historical prices for one asset.
type MarketHistory interface {
	MarketChart(ctx context.Context, assetID string, days int) ([]models.PricePoint, error)
}

// AssetLister discovers assets when none are configured.
type AssetLister interface {
	TopAssetIDs(ctx context.Context, limit int) ([]string, error)
}
