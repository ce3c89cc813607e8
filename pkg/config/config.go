package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/binance"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/kafka"
	redisfeed "github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/redis"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/redis"
)

// Feed source names accepted by FEED_SOURCES.
const (
	SourceSynthetic = "synthetic"
	SourceBinance   = "binance"
	SourceKafka     = "kafka"
	SourceRedis     = "redis"
)

// Config represents the application configuration.
type Config struct {
	App        AppConfig        `envPrefix:"APP_"`
	Aggregator AggregatorConfig `envPrefix:"AGGREGATOR_"`
	Feed       FeedConfig       `envPrefix:"FEED_"`
	Binance    binance.Config   `envPrefix:"BINANCE_"`
	Kafka      kafka.Config     `envPrefix:"KAFKA_"`
	Redis      redis.Config     `envPrefix:"REDIS_"`
	RedisFeed  redisfeed.Config `envPrefix:"REDIS_FEED_"`
}

// AppConfig represents the application configuration.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"orderbook-aggregator"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"8880"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// AggregatorConfig holds the engine and push settings.
type AggregatorConfig struct {
	Symbols           []string      `env:"SYMBOLS" envSeparator:"," envDefault:"BTC/USDT,ETH/USDT"`
	TickInterval      time.Duration `env:"TICK_INTERVAL" envDefault:"10ms"`
	FeedTimeout       time.Duration `env:"FEED_TIMEOUT" envDefault:"0s"`
	DegradedThreshold int           `env:"DEGRADED_THRESHOLD" envDefault:"3"`
	MaxConcurrency    int           `env:"MAX_CONCURRENCY" envDefault:"0"`
	MaxDepth          int           `env:"MAX_DEPTH" envDefault:"0"`
	PushInterval      time.Duration `env:"PUSH_INTERVAL" envDefault:"1s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	OriginPatterns    []string      `env:"ORIGIN_PATTERNS" envSeparator:","`
}

// FeedConfig selects the upstream sources.
type FeedConfig struct {
	Sources        []string `env:"SOURCES" envSeparator:"," envDefault:"synthetic"`
	SyntheticDepth int      `env:"SYNTHETIC_DEPTH" envDefault:"10"`
	SyntheticSeed  uint64   `env:"SYNTHETIC_SEED" envDefault:"0"`
}

// Load loads the configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Aggregator.Symbols = bookv1.NormalizeSymbols(cfg.Aggregator.Symbols)
	for i, s := range cfg.Feed.Sources {
		cfg.Feed.Sources[i] = strings.ToLower(strings.TrimSpace(s))
	}

	return cfg, nil
}

// HasSource reports whether name is one of the configured feed sources.
func (c *Config) HasSource(name string) bool {
	for _, s := range c.Feed.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := errors.NewBaseError()
	invalid := func(message, field string) {
		errs.AddErrorDetails(errors.NewErrorDetails(message, string(errors.FatalConfigurationError), field))
	}

	if len(c.Aggregator.Symbols) == 0 {
		invalid("at least one symbol must be configured", "AGGREGATOR_SYMBOLS")
	}
	if c.Aggregator.TickInterval <= 0 {
		invalid("tick interval must be positive", "AGGREGATOR_TICK_INTERVAL")
	}
	if c.Aggregator.PushInterval <= 0 {
		invalid("push interval must be positive", "AGGREGATOR_PUSH_INTERVAL")
	}
	if c.Aggregator.FeedTimeout < 0 {
		invalid("feed timeout must not be negative", "AGGREGATOR_FEED_TIMEOUT")
	}
	if c.Aggregator.DegradedThreshold < 0 {
		invalid("degraded threshold must not be negative", "AGGREGATOR_DEGRADED_THRESHOLD")
	}
	if c.Aggregator.MaxDepth < 0 {
		invalid("max depth must not be negative", "AGGREGATOR_MAX_DEPTH")
	}
	if c.Aggregator.MaxConcurrency < 0 {
		invalid("max concurrency must not be negative", "AGGREGATOR_MAX_CONCURRENCY")
	}

	if len(c.Feed.Sources) == 0 {
		invalid("at least one feed source must be configured", "FEED_SOURCES")
	}
	for _, s := range c.Feed.Sources {
		switch s {
		case SourceSynthetic, SourceBinance, SourceKafka, SourceRedis:
		default:
			invalid(fmt.Sprintf("unknown feed source %q", s), "FEED_SOURCES")
		}
	}
	if c.HasSource(SourceKafka) && len(c.Kafka.Brokers) == 0 {
		invalid("kafka brokers are required by the kafka source", "KAFKA_BROKERS")
	}

	if errs.HasDetails() {
		return errs
	}
	return nil
}
