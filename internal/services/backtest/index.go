package backtest

import (
	"sort"
	"time"

	"SignalBot/internal/domain/models"
)

// priceIndex holds each asset's prices sorted ascending by timestamp.
// Positions in a series are the unit of the forward window.
type priceIndex map[string][]models.PricePoint

func newPriceIndex(points []models.PricePoint) priceIndex {
	idx := make(priceIndex)
	for _, p := range models.SortedByAssetTime(points, models.PriceKey) {
		idx[p.AssetID] = append(idx[p.AssetID], p)
	}
	return idx
}

// anchor returns the position of the price used as the reference for a
// signal at ts: the first exact match, otherwise the last point at or
// before ts. ok is false when every point is later than ts.
func (idx priceIndex) anchor(asset string, ts time.Time) (pos int, ok bool) {
	series := idx[asset]
	i := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(ts) })
	if i < len(series) && series[i].Timestamp.Equal(ts) {
		return i, true
	}
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}

// forward returns up to window points strictly after pos.
func (idx priceIndex) forward(asset string, pos, window int) []models.PricePoint {
	series := idx[asset]
	start := pos + 1
	if start >= len(series) {
		return nil
	}
	end := start + window
	if end > len(series) {
		end = len(series)
	}
	return series[start:end]
}

func (idx priceIndex) at(asset string, pos int) models.PricePoint {
	return idx[asset][pos]
}
