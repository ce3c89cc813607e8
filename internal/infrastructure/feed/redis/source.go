package redis

import (
	"context"
	"sync"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/redis"
)

// Config holds the key layout of the books published by an upstream collector.
type Config struct {
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"book:"`
}

// Source reads the latest BookEvent stored under <prefix>book:<SYMBOL>.
type Source struct {
	client    redis.Client
	redisConf *redis.Config
	config    Config
	logger    logger.Interface

	mu   sync.Mutex
	last map[string]string
}

// NewSource creates a redis-backed source. client must already be connected.
func NewSource(client redis.Client, redisConf *redis.Config, config Config, logger logger.Interface) *Source {
	return &Source{
		client:    client,
		redisConf: redisConf,
		config:    config,
		logger:    logger,
		last:      make(map[string]string),
	}
}

// Key returns the redis key holding the book of symbol.
func (s *Source) Key(symbol string) string {
	return s.redisConf.Key(s.config.KeyPrefix + bookv1.NormalizeSymbol(symbol))
}

// FetchUpdate returns nil when the key is missing or still holds the payload
// returned by the previous call.
func (s *Source) FetchUpdate(ctx context.Context, symbol string) (*bookv1.Update, error) {
	raw, err := s.client.Get(ctx, s.Key(symbol))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	update, err := feedv1.DecodeBookEvent([]byte(raw))
	if err != nil {
		return nil, err
	}
	if update.Symbol != bookv1.NormalizeSymbol(symbol) {
		return nil, errors.NewErrorDetailsWithObject("book stored under the wrong key", string(errors.FeedDecodeError), "symbol", update.Symbol)
	}

	s.mu.Lock()
	seen := s.last[update.Symbol] == raw
	s.last[update.Symbol] = raw
	s.mu.Unlock()
	if seen {
		return nil, nil
	}

	s.logger.DebugContext(ctx, "Read book from redis", logger.Field{
		Key:   "symbol",
		Value: update.Symbol,
	}, logger.Field{
		Key:   "kind",
		Value: update.Kind,
	})

	return &update, nil
}
