package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	applogger "SignalBot/pkg/logger"
	"SignalBot/pkg/util"
)

// FeatureLogFile holds indicator rows accumulated for later labelling.
const FeatureLogFile = "ml_training.csv"

// fieldSuccess is blank for rows still waiting on a label.
const fieldSuccess = "success"

var featureHeader = append(append([]string{}, models.SnapshotFields...), models.FieldSignal, fieldSuccess)

// AppendFeatures merges signals into the feature log. Rows already in the
// file win over new rows with the same asset and timestamp.
func (s *CSVStore) AppendFeatures(ctx context.Context, signals []models.SignalRecord) error {
	path := s.path(FeatureLogFile)
	rows, seen, err := s.existingFeatures(path)
	if err != nil {
		return err
	}

	added := 0
	for _, r := range signals {
		k := featureKey(r.AssetID, util.FormatTime(r.Timestamp))
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, featureRow(r))
		added++
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeTable(path, featureHeader, rows); err != nil {
		return fmt.Errorf("save features: %w", err)
	}
	s.l.Info("feature log updated",
		applogger.String("file", path),
		applogger.Int("added", added),
		applogger.Int("rows", len(rows)),
	)
	return nil
}

// existingFeatures reads the current log, projected onto featureHeader.
// A missing file is an empty log.
func (s *CSVStore) existingFeatures(path string) ([][]string, map[string]struct{}, error) {
	seen := map[string]struct{}{}
	t, err := readTable(path, snapshotAliases)
	if errors.Is(err, os.ErrNotExist) {
		return nil, seen, nil
	}
	if err != nil {
		return nil, nil, err
	}

	rows := make([][]string, 0, len(t.rows))
	for _, row := range t.rows {
		out := make([]string, len(featureHeader))
		for i, f := range featureHeader {
			out[i] = t.cell(row, f)
		}
		ts, ok := util.ParseTime(out[1])
		if !ok {
			continue
		}
		k := featureKey(out[0], util.FormatTime(ts))
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, out)
	}
	return rows, seen, nil
}

func featureKey(asset, ts string) string {
	return strings.ToLower(asset) + "|" + ts
}

func featureRow(r models.SignalRecord) []string {
	snap := r.Source
	success := "0"
	if r.Labels.IsBuy() {
		success = ""
	}
	return []string{
		r.AssetID,
		util.FormatTime(r.Timestamp),
		util.FormatFloat(snap.CurrentPrice),
		util.FormatFloat(snap.RSI),
		util.FormatFloat(snap.EMA20),
		util.FormatFloat(snap.MACDDiff),
		util.FormatFloat(snap.BBUpper),
		util.FormatFloat(snap.BBLower),
		r.Labels.String(),
		success,
	}
}

var _ domrepo.FeatureLog = (*CSVStore)(nil)
