package bootstrap

import (
	"context"

	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/binance"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/consolidated"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/kafka"
	redisfeed "github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/redis"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/synthetic"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/config"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/redis"
)

// Feed is the source the engine polls. Runner is set when the source keeps
// background consumers that must be started and closed.
type Feed struct {
	Source feedv1.Source
	Runner feedv1.Runner
}

// registerFeed builds one venue per configured source and consolidates them when there
// is more than one.
func (b *Bootstrap) registerFeed(ctx context.Context) error {
	venues := make([]consolidated.Venue, 0, len(b.Config.Feed.Sources))

	for _, name := range b.Config.Feed.Sources {
		var source feedv1.Source
		switch name {
		case config.SourceSynthetic:
			options := synthetic.DefaultOptions()
			options.Depth = b.Config.Feed.SyntheticDepth
			options.Seed = b.Config.Feed.SyntheticSeed
			source = synthetic.NewSource(options)
		case config.SourceBinance:
			source = binance.NewSource(b.Config.Binance, b.Config.Aggregator.Symbols, b.Logger)
		case config.SourceKafka:
			source = kafka.NewSource(b.Config.Kafka, b.Logger)
		case config.SourceRedis:
			if b.Redis == nil {
				b.Redis = redis.NewClient(b.Logger, &b.Config.Redis)
				if err := b.Redis.Connect(ctx); err != nil {
					return err
				}
			}
			source = redisfeed.NewSource(b.Redis, &b.Config.Redis, b.Config.RedisFeed, b.Logger)
		}
		venues = append(venues, consolidated.Venue{Name: name, Source: source})
	}

	if len(venues) == 1 {
		b.Feed.Source = venues[0].Source
		b.Feed.Runner, _ = venues[0].Source.(feedv1.Runner)
		return nil
	}

	merged := consolidated.NewSource(venues, b.Logger)
	b.Feed.Source = merged
	b.Feed.Runner = merged
	return nil
}
