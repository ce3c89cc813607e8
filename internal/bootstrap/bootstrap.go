package bootstrap

import (
	"context"

	"github.com/muhammadchandra19/orderbook-aggregator/internal/app/engine"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/server"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/usecase/snapshot"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/config"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/redis"
)

// Bootstrap holds every component of the aggregator.
type Bootstrap struct {
	Config  *config.Config
	Logger  logger.Interface
	Feed    Feed
	Monitor Monitor
	Store   *snapshot.Store
	Engine  *engine.Engine
	HTTP    *server.Server

	Redis redis.Client
}

// BootstrapConfig is the config for the bootstrap.
type BootstrapConfig struct {
	Config *config.Config
	Logger logger.Interface
	// Redis overrides the client built from Config.Redis.
	Redis redis.Client
}

// Init wires the components in dependency order.
func (b *Bootstrap) Init(ctx context.Context, cfg BootstrapConfig) error {
	b.Config = cfg.Config
	b.Logger = cfg.Logger
	b.Redis = cfg.Redis

	if err := b.Config.Validate(); err != nil {
		return err
	}
	if err := b.registerFeed(ctx); err != nil {
		return err
	}
	b.registerMonitor()
	b.registerStore()
	if err := b.registerEngine(); err != nil {
		return err
	}
	b.registerServer()

	return nil
}

// Close releases the feed and redis connections.
func (b *Bootstrap) Close(ctx context.Context) {
	if b.Feed.Runner != nil {
		if err := b.Feed.Runner.Close(); err != nil {
			b.Logger.Error(err, logger.Field{
				Key:   "action",
				Value: "close_feed",
			})
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Disconnect(ctx); err != nil {
			b.Logger.Error(err, logger.Field{
				Key:   "action",
				Value: "disconnect_redis",
			})
		}
	}
}
