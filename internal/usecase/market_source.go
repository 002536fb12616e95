package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"SignalBot/internal/domain/models"
	domrepo "SignalBot/internal/domain/repository"
	domsvc "SignalBot/internal/domain/service"
	"SignalBot/internal/services/features"
	applogger "SignalBot/pkg/logger"
)

// MarketSource fetches price history from a market API and computes
// indicator snapshots from it. Snapshots and prices of one fetch are reused
// for a short while so a single evaluation hits the API once.
type MarketSource struct {
	history domsvc.MarketHistory
	lister  domsvc.AssetLister
	archive domrepo.Archive
	params  features.Params

	assets []string
	days   int
	topN   int
	reuse  time.Duration

	l   *applogger.Logger
	now func() time.Time

	mu   sync.Mutex
	last *marketFetch
}

type marketFetch struct {
	key    string
	at     time.Time
	prices []models.PricePoint
	snaps  []models.IndicatorSnapshot
}

type MarketOption func(*MarketSource)

// WithAssets sets the assets fetched when a query names none.
func WithAssets(assets []string) MarketOption {
	return func(m *MarketSource) { m.assets = assets }
}

// WithAssetLister discovers assets when neither the query nor WithAssets names any.
func WithAssetLister(lister domsvc.AssetLister, topN int) MarketOption {
	return func(m *MarketSource) {
		m.lister = lister
		if topN > 0 {
			m.topN = topN
		}
	}
}

// WithArchive keeps a copy of every fetch.
func WithArchive(a domrepo.Archive) MarketOption {
	return func(m *MarketSource) { m.archive = a }
}

func WithDays(days int) MarketOption {
	return func(m *MarketSource) {
		if days > 0 {
			m.days = days
		}
	}
}

func WithIndicatorParams(p features.Params) MarketOption {
	return func(m *MarketSource) { m.params = p }
}

func WithReuse(d time.Duration) MarketOption {
	return func(m *MarketSource) { m.reuse = d }
}

func WithMarketLogger(l *applogger.Logger) MarketOption {
	return func(m *MarketSource) {
		if l != nil {
			m.l = l
		}
	}
}

func NewMarketSource(history domsvc.MarketHistory, opts ...MarketOption) *MarketSource {
	m := &MarketSource{
		history: history,
		params:  features.DefaultParams(),
		days:    30,
		topN:    10,
		reuse:   time.Minute,
		l:       applogger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MarketSource) LoadSnapshots(ctx context.Context, q domrepo.Query) (models.SnapshotBatch, error) {
	f, err := m.fetch(ctx, q)
	if err != nil {
		return models.SnapshotBatch{}, err
	}
	rows := make([]models.IndicatorSnapshot, 0, len(f.snaps))
	for _, s := range f.snaps {
		if q.Match(s.AssetID, s.Timestamp) {
			rows = append(rows, s)
		}
	}
	return models.NewSnapshotBatch(rows), nil
}

func (m *MarketSource) LoadPrices(ctx context.Context, q domrepo.Query) (models.PriceBatch, error) {
	f, err := m.fetch(ctx, q)
	if err != nil {
		return models.PriceBatch{}, err
	}
	rows := make([]models.PricePoint, 0, len(f.prices))
	for _, p := range f.prices {
		if q.Match(p.AssetID, p.Timestamp) {
			rows = append(rows, p)
		}
	}
	return models.NewPriceBatch(rows), nil
}

func (m *MarketSource) resolveAssets(ctx context.Context, q domrepo.Query) ([]string, error) {
	if len(q.Assets) > 0 {
		return q.Assets, nil
	}
	if len(m.assets) > 0 {
		return m.assets, nil
	}
	if m.lister == nil {
		return nil, errors.New("no assets configured")
	}
	ids, err := m.lister.TopAssetIDs(ctx, m.topN)
	if err != nil {
		return nil, fmt.Errorf("list top assets: %w", err)
	}
	if len(ids) == 0 {
		return nil, errors.New("no assets resolved: asset listing returned none")
	}
	return ids, nil
}

// fetch pulls full history for the resolved assets. Indicators are computed
// before the query range is applied so warm-up uses all available history.
func (m *MarketSource) fetch(ctx context.Context, q domrepo.Query) (*marketFetch, error) {
	assets, err := m.resolveAssets(ctx, q)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.Join(assets, ","))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last != nil && m.last.key == key && m.now().Sub(m.last.at) < m.reuse {
		return m.last, nil
	}

	type item struct {
		asset  string
		prices []models.PricePoint
		err    error
	}
	ch := make(chan item, len(assets))
	var wg sync.WaitGroup
	for _, a := range assets {
		wg.Add(1)
		go func(asset string) {
			defer wg.Done()
			pts, err := m.history.MarketChart(ctx, asset, m.days)
			ch <- item{asset, pts, err}
		}(a)
	}
	wg.Wait()
	close(ch)

	var prices []models.PricePoint
	var failed []string
	for it := range ch {
		if it.err != nil {
			failed = append(failed, it.asset)
			m.l.Warn("market history fetch failed",
				applogger.String("asset", it.asset), applogger.Error(it.err))
			continue
		}
		prices = append(prices, it.prices...)
	}
	if len(failed) == len(assets) {
		return nil, fmt.Errorf("market history: every asset failed (%s)", strings.Join(failed, ", "))
	}

	prices = models.SortedByAssetTime(prices, models.PriceKey)
	f := &marketFetch{
		key:    key,
		at:     m.now(),
		prices: prices,
		snaps:  features.Compute(prices, m.params),
	}
	m.l.Info("market history fetched",
		applogger.Int("assets", len(assets)-len(failed)),
		applogger.Int("prices", len(f.prices)),
	)

	m.archiveFetch(ctx, f)
	m.last = f
	return f, nil
}

// archiveFetch keeps a side copy of a fetch; failures only warn.
func (m *MarketSource) archiveFetch(ctx context.Context, f *marketFetch) {
	if m.archive == nil {
		return
	}
	if err := m.archive.SavePrices(ctx, f.prices); err != nil {
		m.l.Warn("archive prices failed", applogger.Int("prices", len(f.prices)), applogger.Error(err))
	}
	if err := m.archive.SaveSnapshots(ctx, f.snaps); err != nil {
		m.l.Warn("archive snapshots failed", applogger.Int("snapshots", len(f.snaps)), applogger.Error(err))
	}
}

var (
	_ domrepo.SnapshotSource = (*MarketSource)(nil)
	_ domrepo.PriceSource    = (*MarketSource)(nil)
)
