package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	mu     sync.Mutex
	calls  map[string]int
	series map[string][]models.PricePoint
	fail   map[string]error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{calls: map[string]int{}, series: map[string][]models.PricePoint{}, fail: map[string]error{}}
}

func (f *fakeHistory) MarketChart(_ context.Context, asset string, _ int) ([]models.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[asset]++
	if err := f.fail[asset]; err != nil {
		return nil, err
	}
	return f.series[asset], nil
}

type fakeLister []string

func (l fakeLister) TopAssetIDs(_ context.Context, limit int) ([]string, error) {
	if limit < len(l) {
		return l[:limit], nil
	}
	return l, nil
}

type memArchive struct {
	prices int
	snaps  int
	err    error
}

func (a *memArchive) SavePrices(_ context.Context, p []models.PricePoint) error {
	if a.err != nil {
		return a.err
	}
	a.prices += len(p)
	return nil
}

func (a *memArchive) SaveSnapshots(_ context.Context, s []models.IndicatorSnapshot) error {
	if a.err != nil {
		return a.err
	}
	a.snaps += len(s)
	return nil
}

func rising(asset string, n int) []models.PricePoint {
	out := make([]models.PricePoint, n)
	for i := range out {
		out[i] = models.PricePoint{AssetID: asset, Timestamp: hour(i), Price: 100 + float64(i)}
	}
	return out
}

func TestMarketSourceComputesAndArchives(t *testing.T) {
	h := newFakeHistory()
	h.series["bitcoin"] = rising("bitcoin", 40)
	arch := &memArchive{}
	src := NewMarketSource(h, WithAssets([]string{"bitcoin"}), WithArchive(arch))

	snaps, err := src.LoadSnapshots(context.Background(), domrepo.Query{})
	require.NoError(t, err)
	prices, err := src.LoadPrices(context.Background(), domrepo.Query{})
	require.NoError(t, err)

	assert.Len(t, snaps.Rows, 40)
	assert.Len(t, prices.Rows, 40)
	assert.Equal(t, models.SnapshotFields, snaps.Fields)
	assert.True(t, snaps.Rows[39].Evaluable())
	assert.False(t, models.Defined(snaps.Rows[0].RSI))

	assert.Equal(t, 1, h.calls["bitcoin"], "second load reuses the fetch")
	assert.Equal(t, 40, arch.prices)
	assert.Equal(t, 40, arch.snaps)
}

func TestMarketSourceRangeAppliedAfterWarmup(t *testing.T) {
	h := newFakeHistory()
	h.series["bitcoin"] = rising("bitcoin", 40)
	src := NewMarketSource(h, WithAssets([]string{"bitcoin"}))

	snaps, err := src.LoadSnapshots(context.Background(), domrepo.Query{From: hour(35)})
	require.NoError(t, err)
	require.Len(t, snaps.Rows, 5)
	assert.True(t, snaps.Rows[0].Evaluable())
}

func TestMarketSourceUsesListerAndSkipsFailures(t *testing.T) {
	h := newFakeHistory()
	h.series["bitcoin"] = rising("bitcoin", 5)
	h.fail["ethereum"] = errors.New("429")
	src := NewMarketSource(h, WithAssetLister(fakeLister{"bitcoin", "ethereum", "solana"}, 2))

	prices, err := src.LoadPrices(context.Background(), domrepo.Query{})
	require.NoError(t, err)
	assert.Len(t, prices.Rows, 5)
	assert.Zero(t, h.calls["solana"])
}

func TestMarketSourceAllFailed(t *testing.T) {
	h := newFakeHistory()
	h.fail["bitcoin"] = errors.New("timeout")
	src := NewMarketSource(h, WithAssets([]string{"bitcoin"}))

	_, err := src.LoadPrices(context.Background(), domrepo.Query{})
	assert.Error(t, err)
}

func TestMarketSourceEmptyListing(t *testing.T) {
	h := newFakeHistory()
	src := NewMarketSource(h, WithAssetLister(fakeLister{}, 10))

	_, err := src.LoadPrices(context.Background(), domrepo.Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no assets resolved")
	assert.Empty(t, h.calls)
}

func TestMarketSourceArchiveFailureKeepsData(t *testing.T) {
	h := newFakeHistory()
	h.series["bitcoin"] = rising("bitcoin", 5)
	src := NewMarketSource(h, WithAssets([]string{"bitcoin"}), WithArchive(&memArchive{err: errors.New("read-only fs")}))

	prices, err := src.LoadPrices(context.Background(), domrepo.Query{})
	require.NoError(t, err)
	assert.Len(t, prices.Rows, 5)
	snaps, err := src.LoadSnapshots(context.Background(), domrepo.Query{})
	require.NoError(t, err)
	assert.Len(t, snaps.Rows, 5)
}

func TestMarketSourceNoAssets(t *testing.T) {
	_, err := NewMarketSource(newFakeHistory()).LoadPrices(context.Background(), domrepo.Query{})
	assert.Error(t, err)
}

func TestMarketSourceRefetchesAfterReuseWindow(t *testing.T) {
	h := newFakeHistory()
	h.series["bitcoin"] = rising("bitcoin", 3)
	src := NewMarketSource(h, WithAssets([]string{"bitcoin"}), WithReuse(time.Minute))
	now := t0
	src.now = func() time.Time { return now }

	_, err := src.LoadPrices(context.Background(), domrepo.Query{})
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = src.LoadPrices(context.Background(), domrepo.Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, h.calls["bitcoin"])
}
