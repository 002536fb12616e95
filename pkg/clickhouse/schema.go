package clickhouse

import "fmt"

// Table names inside the configured database.
const (
	TableSnapshots = "indicator_snapshots"
	TablePrices    = "prices"
	TableSignals   = "signals"
	TableOutcomes  = "signal_backtest"
)

// Schema returns the DDL for database. Indicator columns are Nullable so
// undefined readings survive a round trip.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    asset_id String,
    timestamp DateTime64(3, 'UTC'),
    current_price Nullable(Float64),
    rsi Nullable(Float64),
    ema_20 Nullable(Float64),
    macd_diff Nullable(Float64),
    bb_upper Nullable(Float64),
    bb_lower Nullable(Float64)
) ENGINE = MergeTree ORDER BY (asset_id, timestamp)`, database, TableSnapshots),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    asset_id String,
    timestamp DateTime64(3, 'UTC'),
    price Nullable(Float64)
) ENGINE = MergeTree ORDER BY (asset_id, timestamp)`, database, TablePrices),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    run_id String,
    asset_id String,
    timestamp DateTime64(3, 'UTC'),
    signal String,
    saved_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = MergeTree ORDER BY (asset_id, timestamp, run_id)`, database, TableSignals),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    run_id String,
    asset_id String,
    timestamp DateTime64(3, 'UTC'),
    signal String,
    anchor_timestamp DateTime64(3, 'UTC'),
    anchor_price Float64,
    max_future_price Float64,
    return_pct Float64,
    success UInt8,
    window_len UInt32
) ENGINE = MergeTree ORDER BY (asset_id, timestamp, run_id)`, database, TableOutcomes),
		// tables created before saved_at existed
		fmt.Sprintf("ALTER TABLE %s.%s ADD COLUMN IF NOT EXISTS saved_at DateTime64(3, 'UTC') DEFAULT now64(3)", database, TableSignals),
	}
}
