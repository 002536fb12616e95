package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	pkgch "SignalBot/pkg/clickhouse"
	applogger "SignalBot/pkg/logger"
)

// insertChunk bounds the rows of one multi-row INSERT.
const insertChunk = 2000

// CHStore implements the sources and sinks backed by ClickHouse.
type CHStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHStore(ch *pkgch.Client, l *applogger.Logger) *CHStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHStore{ch: ch, db: ch.DB(), l: l}
}

// selectAll reads every column of table inside q and the extra conditions.
// Fields are taken from the result set so absent columns surface in the core
// as schema errors.
func (s *CHStore) selectAll(ctx context.Context, table string, q domrepo.Query, extra ...cond) ([]string, []map[string]any, error) {
	start := time.Now()
	where, args := queryFilter(q, extra...)
	stmt := fmt.Sprintf("SELECT * FROM %s%s ORDER BY asset_id, timestamp", s.ch.Table(table), where)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.l.Error("clickhouse select error", applogger.String("table", table), applogger.Error(err))
		return nil, nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns %s: %w", table, err)
	}
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = strings.ToLower(c)
	}

	var out []map[string]any
	for rows.Next() {
		dest := make([]any, len(cols))
		for i, f := range fields {
			dest[i] = scanTarget(f)
		}
		if err := rows.Scan(dest...); err != nil {
			s.l.Error("clickhouse scan error", applogger.String("table", table), applogger.Error(err))
			return nil, nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec := make(map[string]any, len(cols))
		for i, f := range fields {
			rec[f] = dest[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows %s: %w", table, err)
	}
	s.l.Info("clickhouse select ok",
		applogger.String("table", table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return fields, out, nil
}

// cond is one extra WHERE clause with its placeholder arguments.
type cond struct {
	sql  string
	args []any
}

func queryFilter(q domrepo.Query, extra ...cond) (string, []any) {
	conds, args := queryConds(q)
	for _, c := range extra {
		conds = append(conds, c.sql)
		args = append(args, c.args...)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func queryConds(q domrepo.Query) ([]string, []any) {
	var conds []string
	var args []any
	if len(q.Assets) > 0 {
		marks := make([]string, len(q.Assets))
		for i, a := range q.Assets {
			marks[i] = "?"
			args = append(args, strings.ToLower(a))
		}
		conds = append(conds, "lower(asset_id) IN ("+strings.Join(marks, ", ")+")")
	}
	if !q.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, q.To)
	}
	return conds, args
}

// latestRun keeps the rows of the most recently saved run touching q, so
// repeated runs do not score the same signal more than once.
func (s *CHStore) latestRun(table string, q domrepo.Query) cond {
	inner, args := queryFilter(q)
	return cond{
		sql:  fmt.Sprintf("run_id = (SELECT argMax(run_id, saved_at) FROM %s%s)", s.ch.Table(table), inner),
		args: args,
	}
}

func scanTarget(field string) any {
	switch field {
	case models.FieldAssetID, models.FieldSignal, "run_id":
		return new(sql.NullString)
	case models.FieldTimestamp:
		return new(sql.NullTime)
	case models.FieldCurrentPrice, models.FieldRSI, models.FieldEMA20, models.FieldMACDDiff,
		models.FieldBBUpper, models.FieldBBLower, models.FieldPrice:
		return new(sql.NullFloat64)
	default:
		return new(any)
	}
}

func strOf(rec map[string]any, f string) string {
	if v, ok := rec[f].(*sql.NullString); ok && v.Valid {
		return v.String
	}
	return ""
}

func tsOf(rec map[string]any) time.Time {
	if v, ok := rec[models.FieldTimestamp].(*sql.NullTime); ok && v.Valid {
		return v.Time.UTC()
	}
	return time.Time{}
}

func numOf(rec map[string]any, f string) float64 {
	if v, ok := rec[f].(*sql.NullFloat64); ok && v.Valid {
		return v.Float64
	}
	return models.Undefined()
}

func (s *CHStore) LoadSnapshots(ctx context.Context, q domrepo.Query) (models.SnapshotBatch, error) {
	fields, recs, err := s.selectAll(ctx, pkgch.TableSnapshots, q)
	if err != nil {
		return models.SnapshotBatch{}, err
	}
	out := make([]models.IndicatorSnapshot, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.IndicatorSnapshot{
			AssetID:      strOf(r, models.FieldAssetID),
			Timestamp:    tsOf(r),
			CurrentPrice: numOf(r, models.FieldCurrentPrice),
			RSI:          numOf(r, models.FieldRSI),
			EMA20:        numOf(r, models.FieldEMA20),
			MACDDiff:     numOf(r, models.FieldMACDDiff),
			BBUpper:      numOf(r, models.FieldBBUpper),
			BBLower:      numOf(r, models.FieldBBLower),
		})
	}
	return models.SnapshotBatch{Fields: fields, Rows: out}, nil
}

func (s *CHStore) LoadPrices(ctx context.Context, q domrepo.Query) (models.PriceBatch, error) {
	fields, recs, err := s.selectAll(ctx, pkgch.TablePrices, q)
	if err != nil {
		return models.PriceBatch{}, err
	}
	out := make([]models.PricePoint, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.PricePoint{AssetID: strOf(r, models.FieldAssetID), Timestamp: tsOf(r), Price: numOf(r, models.FieldPrice)})
	}
	return models.PriceBatch{Fields: fields, Rows: out}, nil
}

func (s *CHStore) LoadSignals(ctx context.Context, q domrepo.Query) (models.SignalBatch, error) {
	fields, recs, err := s.selectAll(ctx, pkgch.TableSignals, q, s.latestRun(pkgch.TableSignals, q))
	if err != nil {
		return models.SignalBatch{}, err
	}
	out := make([]models.SignalRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.SignalRecord{
			AssetID:   strOf(r, models.FieldAssetID),
			Timestamp: tsOf(r),
			Labels:    models.ParseLabels(strOf(r, models.FieldSignal)),
		})
	}
	return models.SignalBatch{Fields: fields, Rows: out}, nil
}

// insertRows writes rows in chunks of multi-row VALUES.
func (s *CHStore) insertRows(ctx context.Context, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for lo := 0; lo < len(rows); lo += insertChunk {
		hi := lo + insertChunk
		if hi > len(rows) {
			hi = len(rows)
		}
		values := make([]string, 0, hi-lo)
		args := make([]any, 0, (hi-lo)*len(cols))
		for _, r := range rows[lo:hi] {
			values = append(values, placeholder)
			args = append(args, r...)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.ch.Table(table), strings.Join(cols, ", "), strings.Join(values, ", "))
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			s.l.Error("clickhouse insert error",
				applogger.String("table", table),
				applogger.Int("offset", lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	s.l.Info("clickhouse insert ok",
		applogger.String("table", table),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// nullable maps an undefined reading to NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func (s *CHStore) SaveSignals(ctx context.Context, runID string, signals []models.SignalRecord) error {
	rows := make([][]any, 0, len(signals))
	for _, r := range signals {
		rows = append(rows, []any{runID, r.AssetID, r.Timestamp, r.Labels.String()})
	}
	return s.insertRows(ctx, pkgch.TableSignals, []string{"run_id", "asset_id", "timestamp", "signal"}, rows)
}

func (s *CHStore) SaveOutcomes(ctx context.Context, runID string, outcomes []models.BacktestOutcome) error {
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		success := uint8(0)
		if o.Success {
			success = 1
		}
		rows = append(rows, []any{
			runID, o.AssetID, o.SignalTime, o.Labels.String(), o.AnchorTime,
			o.AnchorPrice, o.MaxFuturePrice, o.ReturnPct, success, uint32(o.WindowLen),
		})
	}
	return s.insertRows(ctx, pkgch.TableOutcomes, []string{
		"run_id", "asset_id", "timestamp", "signal", "anchor_timestamp",
		"anchor_price", "max_future_price", "return_pct", "success", "window_len",
	}, rows)
}

func (s *CHStore) SavePrices(ctx context.Context, prices []models.PricePoint) error {
	rows := make([][]any, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, []any{p.AssetID, p.Timestamp, nullable(p.Price)})
	}
	return s.insertRows(ctx, pkgch.TablePrices, models.PriceFields, rows)
}

func (s *CHStore) SaveSnapshots(ctx context.Context, snapshots []models.IndicatorSnapshot) error {
	rows := make([][]any, 0, len(snapshots))
	for _, r := range snapshots {
		rows = append(rows, []any{
			r.AssetID, r.Timestamp, nullable(r.CurrentPrice), nullable(r.RSI), nullable(r.EMA20),
			nullable(r.MACDDiff), nullable(r.BBUpper), nullable(r.BBLower),
		})
	}
	return s.insertRows(ctx, pkgch.TableSnapshots, models.SnapshotFields, rows)
}

// Health pings the pool.
func (s *CHStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

var (
	_ domrepo.SnapshotSource = (*CHStore)(nil)
	_ domrepo.PriceSource    = (*CHStore)(nil)
	_ domrepo.SignalSource   = (*CHStore)(nil)
	_ domrepo.SignalSink     = (*CHStore)(nil)
	_ domrepo.OutcomeStore   = (*CHStore)(nil)
	_ domrepo.Archive        = (*CHStore)(nil)
)
