package bootstrap

import (
	"context"
	"time"

	"github.com/muhammadchandra19/orderbook-aggregator/internal/app/engine"
	aggregatorv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/aggregator/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/metrics"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/rpc"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/server"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/usecase/snapshot"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/grpclib/health"
)

const probeTimeout = time.Second

// Monitor holds the engine observers.
type Monitor struct {
	Metrics *metrics.Collector
	Health  *health.Server
	RPC     *rpc.HealthMonitor
}

func (b *Bootstrap) registerMonitor() {
	b.Monitor.Metrics = metrics.NewCollector()
	b.Monitor.Metrics.Init(b.Config.Aggregator.Symbols)
	b.Monitor.Health = health.NewServer()
	b.Monitor.RPC = rpc.NewHealthMonitor(b.Monitor.Health, b.Config.Aggregator.Symbols, b.Logger)
}

func (b *Bootstrap) registerStore() {
	b.Store = snapshot.NewStore(b.Logger, b.Config.Aggregator.MaxDepth)
}

func (b *Bootstrap) registerEngine() error {
	options := engine.DefaultEngineOptions()
	options.TickInterval = b.Config.Aggregator.TickInterval
	options.FeedTimeout = b.Config.Aggregator.FeedTimeout
	options.DegradedThreshold = b.Config.Aggregator.DegradedThreshold
	options.MaxConcurrency = b.Config.Aggregator.MaxConcurrency
	options.Monitor = aggregatorv1.Monitors{b.Monitor.Metrics, b.Monitor.RPC}

	e, err := engine.NewEngineWithOptions(b.Store, b.Feed.Source, b.Config.Aggregator.Symbols, b.Logger, options)
	if err != nil {
		return err
	}
	b.Engine = e
	return nil
}

func (b *Bootstrap) registerServer() {
	probe := func() error {
		if !b.Engine.IsRunning() {
			return errors.NewErrorDetails("aggregation engine is not running", string(errors.GeneralInternalServerError), "engine")
		}
		if b.Redis != nil {
			ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
			defer cancel()
			return b.Redis.Ping(ctx)
		}
		return nil
	}

	b.HTTP = server.New(b.Engine, b.Monitor.Metrics.Handler(), probe, server.Config{
		PushInterval:   b.Config.Aggregator.PushInterval,
		OriginPatterns: b.Config.Aggregator.OriginPatterns,
	}, b.Logger)
}
