package repository

import (
	"strings"
	"time"
)

// Query selects the slice of history a stage reads. Zero values match everything.
type Query struct {
	Assets []string
	From   time.Time
	To     time.Time
}

// Match reports whether a row keyed by asset and ts falls inside the query.
func (q Query) Match(asset string, ts time.Time) bool {
	if !q.MatchAsset(asset) {
		return false
	}
	if !q.From.IsZero() && ts.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && ts.After(q.To) {
		return false
	}
	return true
}

// MatchAsset reports whether asset is selected.
func (q Query) MatchAsset(asset string) bool {
	if len(q.Assets) == 0 {
		return true
	}
	for _, a := range q.Assets {
		if strings.EqualFold(a, asset) {
			return true
		}
	}
	return false
}

// ForAsset narrows the query to a single asset; an empty asset keeps the current selection.
func (q Query) ForAsset(asset string) Query {
	if asset == "" {
		return q
	}
	q.Assets = []string{asset}
	return q
}

// Unbounded keeps the asset selection and drops the time range. Prices for
// an evaluation are read this way so anchors before From and forward
// windows past To stay visible.
func (q Query) Unbounded() Query {
	return Query{Assets: q.Assets}
}
