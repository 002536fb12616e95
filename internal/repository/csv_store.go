package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	applogger "SignalBot/pkg/logger"
	"SignalBot/pkg/util"
)

// File names under the data directory.
const (
	IndicatorsFile = "indicators.csv"
	PricesFile     = "prices.csv"
	SignalsFile    = "signals.csv"
	OutcomesFile   = "signal_backtest.csv"
)

// Legacy column names written by older collectors.
var (
	snapshotAliases = map[string]string{"id": models.FieldAssetID, "close": models.FieldCurrentPrice}
	priceAliases    = map[string]string{"id": models.FieldAssetID, "current_price": models.FieldPrice, "close": models.FieldPrice}
	signalAliases   = map[string]string{"id": models.FieldAssetID}
)

var (
	signalHeader  = []string{models.FieldAssetID, models.FieldTimestamp, models.FieldSignal, "run_id"}
	outcomeHeader = []string{
		models.FieldAssetID, models.FieldTimestamp, models.FieldSignal, "anchor_timestamp",
		"anchor_price", "max_future_price", "return_pct", "success", "window_len", "run_id",
	}
)

// CSVStore reads and writes the flat-file tables under a data directory.
type CSVStore struct {
	dir string
	l   *applogger.Logger
}

func NewCSVStore(dir string, l *applogger.Logger) *CSVStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CSVStore{dir: dir, l: l}
}

func (s *CSVStore) path(name string) string { return filepath.Join(s.dir, name) }

// rowIssues counts cells that could not be used while loading one table.
type rowIssues struct {
	badTime  int
	badFloat int
}

func (s *CSVStore) report(file string, rows int, is rowIssues) {
	if is.badTime > 0 || is.badFloat > 0 {
		s.l.Warn("csv rows with unusable cells",
			applogger.String("file", file),
			applogger.Int("bad_timestamps", is.badTime),
			applogger.Int("bad_numbers", is.badFloat),
		)
	}
	s.l.Debug("csv loaded", applogger.String("file", file), applogger.Int("rows", rows))
}

// key parses the (asset, timestamp) pair. ok is false when a timestamp
// column exists but the cell cannot be parsed.
func (t *table) key(row []string, is *rowIssues) (asset string, ts time.Time, ok bool) {
	asset = t.cell(row, models.FieldAssetID)
	if !t.has(models.FieldTimestamp) {
		return asset, time.Time{}, true
	}
	ts, ok = util.ParseTime(t.cell(row, models.FieldTimestamp))
	if !ok {
		is.badTime++
	}
	return asset, ts, ok
}

func (t *table) float(row []string, name string, is *rowIssues) float64 {
	v, err := util.ParseFloatNaN(t.cell(row, name))
	if err != nil {
		is.badFloat++
	}
	return v
}

func (s *CSVStore) LoadSnapshots(ctx context.Context, q domrepo.Query) (models.SnapshotBatch, error) {
	t, err := readTable(s.path(IndicatorsFile), snapshotAliases)
	if err != nil {
		return models.SnapshotBatch{}, err
	}
	var is rowIssues
	out := make([]models.IndicatorSnapshot, 0, len(t.rows))
	for _, row := range t.rows {
		asset, ts, ok := t.key(row, &is)
		if !ok || !q.Match(asset, ts) {
			continue
		}
		out = append(out, models.IndicatorSnapshot{
			AssetID:      asset,
			Timestamp:    ts,
			CurrentPrice: t.float(row, models.FieldCurrentPrice, &is),
			RSI:          t.float(row, models.FieldRSI, &is),
			EMA20:        t.float(row, models.FieldEMA20, &is),
			MACDDiff:     t.float(row, models.FieldMACDDiff, &is),
			BBUpper:      t.float(row, models.FieldBBUpper, &is),
			BBLower:      t.float(row, models.FieldBBLower, &is),
		})
	}
	s.report(IndicatorsFile, len(out), is)
	return models.SnapshotBatch{Fields: t.fields, Rows: out}, ctx.Err()
}

func (s *CSVStore) LoadPrices(ctx context.Context, q domrepo.Query) (models.PriceBatch, error) {
	t, err := readTable(s.path(PricesFile), priceAliases)
	if err != nil {
		return models.PriceBatch{}, err
	}
	var is rowIssues
	out := make([]models.PricePoint, 0, len(t.rows))
	for _, row := range t.rows {
		asset, ts, ok := t.key(row, &is)
		if !ok || !q.Match(asset, ts) {
			continue
		}
		out = append(out, models.PricePoint{AssetID: asset, Timestamp: ts, Price: t.float(row, models.FieldPrice, &is)})
	}
	s.report(PricesFile, len(out), is)
	return models.PriceBatch{Fields: t.fields, Rows: out}, ctx.Err()
}

func (s *CSVStore) LoadSignals(ctx context.Context, q domrepo.Query) (models.SignalBatch, error) {
	t, err := readTable(s.path(SignalsFile), signalAliases)
	if err != nil {
		return models.SignalBatch{}, err
	}
	var is rowIssues
	out := make([]models.SignalRecord, 0, len(t.rows))
	for _, row := range t.rows {
		asset, ts, ok := t.key(row, &is)
		if !ok || !q.Match(asset, ts) {
			continue
		}
		out = append(out, models.SignalRecord{
			AssetID:   asset,
			Timestamp: ts,
			Labels:    models.ParseLabels(t.cell(row, models.FieldSignal)),
		})
	}
	s.report(SignalsFile, len(out), is)
	return models.SignalBatch{Fields: t.fields, Rows: out}, ctx.Err()
}

func (s *CSVStore) SaveSignals(_ context.Context, runID string, signals []models.SignalRecord) error {
	rows := make([][]string, 0, len(signals))
	for _, r := range signals {
		rows = append(rows, []string{r.AssetID, util.FormatTime(r.Timestamp), r.Labels.String(), runID})
	}
	if err := writeTable(s.path(SignalsFile), signalHeader, rows); err != nil {
		return fmt.Errorf("save signals: %w", err)
	}
	s.l.Info("signals written", applogger.String("file", s.path(SignalsFile)), applogger.Int("rows", len(rows)))
	return nil
}

func (s *CSVStore) SaveOutcomes(_ context.Context, runID string, outcomes []models.BacktestOutcome) error {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			o.AssetID,
			util.FormatTime(o.SignalTime),
			o.Labels.String(),
			util.FormatTime(o.AnchorTime),
			util.FormatFloat(o.AnchorPrice),
			util.FormatFloat(o.MaxFuturePrice),
			util.FormatFloat(o.ReturnPct),
			strconv.FormatBool(o.Success),
			strconv.Itoa(o.WindowLen),
			runID,
		})
	}
	if err := writeTable(s.path(OutcomesFile), outcomeHeader, rows); err != nil {
		return fmt.Errorf("save outcomes: %w", err)
	}
	s.l.Info("outcomes written", applogger.String("file", s.path(OutcomesFile)), applogger.Int("rows", len(rows)))
	return nil
}

func (s *CSVStore) SavePrices(_ context.Context, prices []models.PricePoint) error {
	rows := make([][]string, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, []string{p.AssetID, util.FormatTime(p.Timestamp), util.FormatFloat(p.Price)})
	}
	if err := writeTable(s.path(PricesFile), models.PriceFields, rows); err != nil {
		return fmt.Errorf("save prices: %w", err)
	}
	return nil
}

func (s *CSVStore) SaveSnapshots(_ context.Context, snapshots []models.IndicatorSnapshot) error {
	rows := make([][]string, 0, len(snapshots))
	for _, r := range snapshots {
		rows = append(rows, []string{
			r.AssetID,
			util.FormatTime(r.Timestamp),
			util.FormatFloat(r.CurrentPrice),
			util.FormatFloat(r.RSI),
			util.FormatFloat(r.EMA20),
			util.FormatFloat(r.MACDDiff),
			util.FormatFloat(r.BBUpper),
			util.FormatFloat(r.BBLower),
		})
	}
	if err := writeTable(s.path(IndicatorsFile), models.SnapshotFields, rows); err != nil {
		return fmt.Errorf("save snapshots: %w", err)
	}
	return nil
}

var (
	_ domrepo.SnapshotSource = (*CSVStore)(nil)
	_ domrepo.PriceSource    = (*CSVStore)(nil)
	_ domrepo.SignalSource   = (*CSVStore)(nil)
	_ domrepo.SignalSink     = (*CSVStore)(nil)
	_ domrepo.OutcomeStore   = (*CSVStore)(nil)
	_ domrepo.Archive        = (*CSVStore)(nil)
)
