package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"SignalBot/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Rules       RulesConfig      `yaml:"rules"`
	Backtest    BacktestConfig   `yaml:"backtest"`
	Indicators  IndicatorConfig  `yaml:"indicators"`
	Source      SourceConfig     `yaml:"source"`
	Sink        SinkConfig       `yaml:"sink"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Redis       RedisConfig      `yaml:"redis"`
	CoinGecko   CoinGeckoConfig  `yaml:"coingecko"`
	Cache       CacheConfig      `yaml:"cache"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type RulesConfig struct {
	RSIOversold   float64 `yaml:"rsi_oversold" default:"30" validate:"gt=0,lt=100"`
	RSIOverbought float64 `yaml:"rsi_overbought" default:"70" validate:"gt=0,lt=100"`
}

type BacktestConfig struct {
	Threshold float64 `yaml:"threshold" default:"0.05" validate:"gt=-1,lt=10"`
	Window    int     `yaml:"window" default:"6" validate:"gte=1"`
}

type IndicatorConfig struct {
	Engine     string  `yaml:"engine" default:"native" validate:"oneof=native talib"`
	RSIWindow  int     `yaml:"rsi_window" default:"14" validate:"gte=1"`
	EMAWindow  int     `yaml:"ema_window" default:"20" validate:"gte=1"`
	BBWindow   int     `yaml:"bb_window" default:"20" validate:"gte=2"`
	BBDev      float64 `yaml:"bb_dev" default:"2" validate:"gt=0"`
	MACDFast   int     `yaml:"macd_fast" default:"12" validate:"gte=1"`
	MACDSlow   int     `yaml:"macd_slow" default:"26" validate:"gte=1"`
	MACDSignal int     `yaml:"macd_signal" default:"9" validate:"gte=1"`
}

// SourceConfig selects where snapshots and prices are read from.
// From/To accept anything util.ParseTime does.
type SourceConfig struct {
	Type    string   `yaml:"type" default:"csv" validate:"oneof=csv clickhouse coingecko"`
	DataDir string   `yaml:"data_dir" default:"data"`
	Assets  []string `yaml:"assets"`
	Days    int      `yaml:"days" default:"30" validate:"gte=1"`
	TopN    int      `yaml:"top_n" default:"10" validate:"gte=1,lte=250"`
	From    string   `yaml:"from"`
	To      string   `yaml:"to"`
}

// Range parses From and To. Blank bounds come back as zero times.
func (s SourceConfig) Range() (from, to time.Time, err error) {
	var ok bool
	if s.From != "" {
		if from, ok = util.ParseTime(s.From); !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("source.from: cannot parse %q", s.From)
		}
	}
	if s.To != "" {
		if to, ok = util.ParseTime(s.To); !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("source.to: cannot parse %q", s.To)
		}
	}
	return from, to, nil
}

type SinkConfig struct {
	Type       string `yaml:"type" default:"csv" validate:"oneof=csv clickhouse"`
	DataDir    string `yaml:"data_dir" default:"data"`
	FeatureLog bool   `yaml:"feature_log" default:"true"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"signalbot"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"10s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	InitSchema       bool          `yaml:"init_schema"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"signalbot.backtest"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"signalbot"`
}

type CoinGeckoConfig struct {
	BaseURL       string        `yaml:"base_url" default:"https://api.coingecko.com/api/v3" validate:"url"`
	APIKey        string        `yaml:"api_key"`
	VsCurrency    string        `yaml:"vs_currency" default:"usd"`
	Timeout       time.Duration `yaml:"timeout" default:"15s"`
	RateCapacity  int           `yaml:"rate_capacity" default:"5" validate:"gte=1"`
	RatePerSecond float64       `yaml:"rate_per_second" default:"0.5" validate:"gt=0"`

	// consecutive upstream failures before the breaker opens
	BreakerFailures int           `yaml:"breaker_failures" default:"5" validate:"gte=1"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" default:"30s"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" default:"5m"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Unset keys take their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default returns a config made only of defaults.
func Default() *Config {
	c, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	return loadWithEnv(path, os.Getenv)
}

func loadWithEnv(path string, getenv func(string) string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SIGNALBOT_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("SIGNALBOT_ASSETS"); v != "" {
		c.Source.Assets = util.SplitList(v)
	}
	if v := getenv("SIGNALBOT_SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.ClickHouse.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.ClickHouse.Port = p
		}
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("COINGECKO_API_KEY"); v != "" {
		c.CoinGecko.APIKey = v
	}
}

// Validate checks tags first, then rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Rules.RSIOversold >= c.Rules.RSIOverbought {
		return fmt.Errorf("rules.rsi_oversold (%v) must be below rules.rsi_overbought (%v)",
			c.Rules.RSIOversold, c.Rules.RSIOverbought)
	}
	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return errors.New("indicators.macd_fast must be below indicators.macd_slow")
	}
	if c.UsesClickHouse() && c.ClickHouse.Host == "" {
		return errors.New("clickhouse.host is required for a clickhouse source or sink")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	from, to, err := c.Source.Range()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return errors.New("source.to must not be before source.from")
	}
	return nil
}

// UsesClickHouse reports whether any stage reads from or writes to ClickHouse.
func (c *Config) UsesClickHouse() bool {
	return c.Source.Type == "clickhouse" || c.Sink.Type == "clickhouse"
}
