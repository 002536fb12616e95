package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Batch is a materialized input collection together with the fields its
// source actually provided. Fields drive schema validation in the core.
type Batch[T any] struct {
	Fields []string
	Rows   []T
}

type (
	SnapshotBatch = Batch[IndicatorSnapshot]
	SignalBatch   = Batch[SignalRecord]
	PriceBatch    = Batch[PricePoint]
)

// Complete field sets produced by typed (non-tabular) sources.
var (
	SnapshotFields = []string{
		FieldAssetID, FieldTimestamp, FieldCurrentPrice, FieldRSI,
		FieldEMA20, FieldMACDDiff, FieldBBUpper, FieldBBLower,
	}
	SignalFields = []string{FieldAssetID, FieldTimestamp, FieldSignal}
	PriceFields  = []string{FieldAssetID, FieldTimestamp, FieldPrice}
)

// NewSnapshotBatch wraps rows that carry every snapshot field.
func NewSnapshotBatch(rows []IndicatorSnapshot) SnapshotBatch {
	return SnapshotBatch{Fields: SnapshotFields, Rows: rows}
}

// NewSignalBatch wraps generator output.
func NewSignalBatch(rows []SignalRecord) SignalBatch {
	return SignalBatch{Fields: SignalFields, Rows: rows}
}

// NewPriceBatch wraps rows that carry every price field.
func NewPriceBatch(rows []PricePoint) PriceBatch {
	return PriceBatch{Fields: PriceFields, Rows: rows}
}

// Missing returns the required fields absent from the batch, in the order given.
func (b Batch[T]) Missing(required ...string) []string {
	have := make(map[string]struct{}, len(b.Fields))
	for _, f := range b.Fields {
		have[strings.ToLower(strings.TrimSpace(f))] = struct{}{}
	}
	var out []string
	for _, r := range required {
		if _, ok := have[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// SchemaError reports required fields that are absent from a whole input.
type SchemaError struct {
	Stage   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required fields: %s", e.Stage, strings.Join(e.Missing, ", "))
}

// ExclusionReason classifies a record that produced no output.
type ExclusionReason string

const (
	ExcludedNoAnchor        ExclusionReason = "no_anchor"
	ExcludedNoForwardWindow ExclusionReason = "no_forward_window"
	ExcludedInvalidPrice    ExclusionReason = "invalid_price"
)

// Result is the outcome of a core stage. An empty Items slice is valid; a
// non-nil Schema means the stage could not run on this input at all.
type Result[T any] struct {
	Items    []T
	Schema   *SchemaError
	Excluded map[ExclusionReason]int
}

// OK reports whether the stage ran.
func (r Result[T]) OK() bool { return r.Schema == nil }

// ExcludedTotal sums exclusions across reasons.
func (r Result[T]) ExcludedTotal() int {
	n := 0
	for _, c := range r.Excluded {
		n += c
	}
	return n
}

// SchemaFailure builds the empty result returned on a structural failure.
func SchemaFailure[T any](stage string, missing []string) Result[T] {
	return Result[T]{Items: []T{}, Schema: &SchemaError{Stage: stage, Missing: missing}}
}

// SortedByAssetTime returns a stably sorted copy of rows ordered by asset,
// then timestamp. The input slice is left untouched.
func SortedByAssetTime[T any](rows []T, key func(T) (string, time.Time)) []T {
	out := make([]T, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		ai, ti := key(out[i])
		aj, tj := key(out[j])
		if ai != aj {
			return ai < aj
		}
		return ti.Before(tj)
	})
	return out
}

func SnapshotKey(s IndicatorSnapshot) (string, time.Time) { return s.AssetID, s.Timestamp }
func SignalKey(s SignalRecord) (string, time.Time)        { return s.AssetID, s.Timestamp }
func PriceKey(p PricePoint) (string, time.Time)           { return p.AssetID, p.Timestamp }
