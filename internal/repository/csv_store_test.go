package repository

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCSVLoadSnapshotsFieldsFollowHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, IndicatorsFile, "asset_id,timestamp,current_price,rsi,macd_diff,bb_upper\n"+
		"bitcoin,2024-05-01 00:00:00,100,25,,110\n"+
		"bitcoin,not-a-time,101,26,0.1,111\n"+
		"ethereum,2024-05-01T01:00:00Z,50,abc,0.2,60\n")

	b, err := NewCSVStore(dir, nil).LoadSnapshots(context.Background(), domrepo.Query{})
	require.NoError(t, err)

	assert.Equal(t, []string{"bb_lower"}, b.Missing(models.FieldRSI, models.FieldBBLower))
	require.Len(t, b.Rows, 2)
	assert.Equal(t, t0, b.Rows[0].Timestamp)
	assert.Equal(t, 25.0, b.Rows[0].RSI)
	assert.True(t, math.IsNaN(b.Rows[0].MACDDiff))
	assert.True(t, math.IsNaN(b.Rows[0].BBLower))
	assert.True(t, math.IsNaN(b.Rows[1].RSI))
}

func TestCSVLoadPricesAcceptsLegacyColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, PricesFile, "id,timestamp,current_price,market_cap\n"+
		"bitcoin,2024-05-01 00:00:00,100,1\n"+
		"bitcoin,2024-05-01 01:00:00,105,1\n"+
		"ethereum,2024-05-01 00:00:00,50,1\n")

	s := NewCSVStore(dir, nil)
	b, err := s.LoadPrices(context.Background(), domrepo.Query{Assets: []string{"Bitcoin"}, From: t0.Add(time.Minute)})
	require.NoError(t, err)

	assert.Empty(t, b.Missing(models.PriceFields...))
	require.Len(t, b.Rows, 1)
	assert.Equal(t, models.PricePoint{AssetID: "bitcoin", Timestamp: t0.Add(time.Hour), Price: 105}, b.Rows[0])
}

func TestCSVMissingFileIsError(t *testing.T) {
	_, err := NewCSVStore(t.TempDir(), nil).LoadPrices(context.Background(), domrepo.Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVEmptyFileHasNoFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SignalsFile, "")

	b, err := NewCSVStore(dir, nil).LoadSignals(context.Background(), domrepo.Query{})
	require.NoError(t, err)
	assert.Equal(t, models.SignalFields, b.Missing(models.SignalFields...))
	assert.Empty(t, b.Rows)
}

func TestCSVSignalsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(filepath.Join(t.TempDir(), "out"), nil)
	in := []models.SignalRecord{
		{AssetID: "bitcoin", Timestamp: t0, Labels: models.Labels{models.TagBuyRSIOversold, models.TagBuyMACDCross}},
		{AssetID: "bitcoin", Timestamp: t0.Add(time.Hour), Labels: models.Labels{}},
	}
	require.NoError(t, s.SaveSignals(ctx, "run-1", in))

	raw, err := os.ReadFile(filepath.Join(s.dir, SignalsFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"BUY_RSI_OVERSOLD, BUY_MACD_CROSS"`)
	assert.Contains(t, string(raw), ",HOLD,run-1")

	b, err := s.LoadSignals(ctx, domrepo.Query{})
	require.NoError(t, err)
	require.Len(t, b.Rows, 2)
	assert.Equal(t, in[0].Labels, b.Rows[0].Labels)
	assert.True(t, b.Rows[1].Labels.IsHold())
	assert.Equal(t, t0, b.Rows[0].Timestamp)
}

func TestCSVSaveOutcomes(t *testing.T) {
	s := NewCSVStore(t.TempDir(), nil)
	err := s.SaveOutcomes(context.Background(), "run-1", []models.BacktestOutcome{{
		AssetID: "bitcoin", SignalTime: t0, Labels: models.Labels{models.TagBuyMACDCross},
		AnchorTime: t0, AnchorPrice: 100, MaxFuturePrice: 130, ReturnPct: 0.3, Success: true, WindowLen: 3,
	}})
	require.NoError(t, err)

	tbl, err := readTable(filepath.Join(s.dir, OutcomesFile), nil)
	require.NoError(t, err)
	require.Len(t, tbl.rows, 1)
	assert.Equal(t, outcomeHeader, tbl.fields)
	assert.Equal(t, "0.3", tbl.cell(tbl.rows[0], "return_pct"))
	assert.Equal(t, "true", tbl.cell(tbl.rows[0], "success"))
	assert.Equal(t, "2024-05-01T00:00:00Z", tbl.cell(tbl.rows[0], models.FieldTimestamp))
}

func TestCSVArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewCSVStore(t.TempDir(), nil)
	snap := models.IndicatorSnapshot{
		AssetID: "eth", Timestamp: t0, CurrentPrice: 10, RSI: models.Undefined(),
		EMA20: 9.5, MACDDiff: -0.25, BBUpper: 11, BBLower: 8,
	}
	require.NoError(t, s.SaveSnapshots(ctx, []models.IndicatorSnapshot{snap}))
	require.NoError(t, s.SavePrices(ctx, []models.PricePoint{{AssetID: "eth", Timestamp: t0, Price: 10}}))

	snaps, err := s.LoadSnapshots(ctx, domrepo.Query{})
	require.NoError(t, err)
	require.Len(t, snaps.Rows, 1)
	assert.Empty(t, snaps.Missing(models.SnapshotFields...))
	assert.True(t, math.IsNaN(snaps.Rows[0].RSI))
	assert.Equal(t, -0.25, snaps.Rows[0].MACDDiff)

	prices, err := s.LoadPrices(ctx, domrepo.Query{})
	require.NoError(t, err)
	assert.Equal(t, []models.PricePoint{{AssetID: "eth", Timestamp: t0, Price: 10}}, prices.Rows)
}
