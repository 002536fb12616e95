package di

import (
	"context"
	"fmt"
	"time"

	"SignalBot/internal/domain/repository"
	"SignalBot/internal/handler/api"
	internalrepo "SignalBot/internal/repository"
	icache "SignalBot/internal/service/cache"
	"SignalBot/internal/service/coingecko"
	"SignalBot/internal/services/backtest"
	"SignalBot/internal/services/features"
	"SignalBot/internal/services/signals"
	"SignalBot/internal/usecase"
	pkgch "SignalBot/pkg/clickhouse"
	"SignalBot/pkg/config"
	pkgkafka "SignalBot/pkg/kafka"
	applogger "SignalBot/pkg/logger"
	"SignalBot/pkg/metrics"
	"SignalBot/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideClickHouseClient connects only when a source or sink uses ClickHouse.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.UsesClickHouse() {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if !cfg.ClickHouse.InitSchema {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(client.Database())); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse schema ready", applogger.String("database", client.Database()))
	return client, nil
}

// ProvideKafkaProducer returns nil when publishing is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher wraps the producer; nil keeps the pipeline's no-op publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideCoinGecko creates the market history client.
func ProvideCoinGecko(cfg *config.Config, l *applogger.Logger) *coingecko.Client {
	return coingecko.New(coingecko.Config{
		BaseURL:       cfg.CoinGecko.BaseURL,
		APIKey:        cfg.CoinGecko.APIKey,
		VsCurrency:    cfg.CoinGecko.VsCurrency,
		Timeout:       cfg.CoinGecko.Timeout,
		RateCapacity:  float64(cfg.CoinGecko.RateCapacity),
		RatePerSecond: cfg.CoinGecko.RatePerSecond,

		BreakerFailures: uint32(cfg.CoinGecko.BreakerFailures),
		BreakerCooldown: cfg.CoinGecko.BreakerCooldown,
	}, coingecko.WithLogger(l))
}

// Stores groups every port the pipeline reads from or writes to.
type Stores struct {
	Snapshots repository.SnapshotSource
	Prices    repository.PriceSource
	Persisted repository.SignalSource
	Signals   repository.SignalSink
	Outcomes  repository.OutcomeStore
	Features  repository.FeatureLog
}

func indicatorParams(cfg *config.Config) features.Params {
	ic := cfg.Indicators
	return features.Params{
		Engine:     features.Engine(ic.Engine),
		RSIWindow:  ic.RSIWindow,
		EMAWindow:  ic.EMAWindow,
		BBWindow:   ic.BBWindow,
		BBDev:      ic.BBDev,
		MACDFast:   ic.MACDFast,
		MACDSlow:   ic.MACDSlow,
		MACDSignal: ic.MACDSignal,
	}
}

// ProvideStores resolves source.type and sink.type to concrete stores.
func ProvideStores(cfg *config.Config, ch *pkgch.Client, cg *coingecko.Client, l *applogger.Logger) (*Stores, error) {
	st := &Stores{}

	switch cfg.Source.Type {
	case "csv":
		src := internalrepo.NewCSVStore(cfg.Source.DataDir, l)
		st.Snapshots, st.Prices = src, src
	case "clickhouse":
		src := internalrepo.NewCHStore(ch, l)
		st.Snapshots, st.Prices = src, src
	case "coingecko":
		src := usecase.NewMarketSource(cg,
			usecase.WithAssets(cfg.Source.Assets),
			usecase.WithAssetLister(cg, cfg.Source.TopN),
			usecase.WithDays(cfg.Source.Days),
			usecase.WithIndicatorParams(indicatorParams(cfg)),
			usecase.WithArchive(internalrepo.NewCSVStore(cfg.Source.DataDir, l)),
			usecase.WithMarketLogger(l),
		)
		st.Snapshots, st.Prices = src, src
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}

	switch cfg.Sink.Type {
	case "csv":
		sink := internalrepo.NewCSVStore(cfg.Sink.DataDir, l)
		st.Signals, st.Outcomes, st.Persisted = sink, sink, sink
	case "clickhouse":
		sink := internalrepo.NewCHStore(ch, l)
		st.Signals, st.Outcomes, st.Persisted = sink, sink, sink
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}
	if cfg.Sink.FeatureLog {
		st.Features = internalrepo.NewCSVStore(cfg.Sink.DataDir, l)
	}
	return st, nil
}

// ProvideCache prefers Redis and falls back to process memory when Redis
// is disabled or unreachable.
func ProvideCache(cfg *config.Config, l *applogger.Logger) icache.BytesCache {
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache()
	}
	rc := icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis unavailable, using in-memory report cache", applogger.String("addr", cfg.Redis.Addr), applogger.Error(err))
		_ = rc.Close()
		return icache.NewTTLCache()
	}
	return icache.NewLayered(rc, 30*time.Second)
}

// ProvidePipeline assembles the batch pipeline.
func ProvidePipeline(
	cfg *config.Config,
	st *Stores,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	gen := signals.NewGenerator(
		signals.WithRSIBounds(cfg.Rules.RSIOversold, cfg.Rules.RSIOverbought),
		signals.WithLogger(l),
	)
	return usecase.NewPipeline(st.Snapshots, st.Prices, gen, backtest.Factory(l),
		usecase.WithSignalSource(st.Persisted),
		usecase.WithSignalSink(st.Signals),
		usecase.WithOutcomeStore(st.Outcomes),
		usecase.WithFeatureLog(st.Features),
		usecase.WithPublisher(pub),
		usecase.WithDefaults(cfg.Backtest.Threshold, cfg.Backtest.Window),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	)
}

// ProvideBaseQuery turns the source section into the default selection.
func ProvideBaseQuery(cfg *config.Config) (repository.Query, error) {
	from, to, err := cfg.Source.Range()
	if err != nil {
		return repository.Query{}, err
	}
	return repository.Query{Assets: cfg.Source.Assets, From: from, To: to}, nil
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	cfg *config.Config,
	p *usecase.Pipeline,
	cache icache.BytesCache,
	q repository.Query,
	l *applogger.Logger,
) *api.BacktestEchoHandler {
	return api.NewBacktestEchoHandler(l, p,
		api.WithCache(cache, cfg.Cache.TTL),
		api.WithBaseQuery(q),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	p *usecase.Pipeline,
	h *api.BacktestEchoHandler,
	q repository.Query,
	reg *prometheus.Registry,
	ch *pkgch.Client,
	cache icache.BytesCache,
) *server.App {
	app := server.New(cfg, l, p, q, reg, h)
	if ch != nil {
		app.OnClose("clickhouse", ch.Close)
	}
	if c, ok := cache.(interface{ Close() error }); ok {
		app.OnClose("redis", c.Close)
	}
	return app
}
