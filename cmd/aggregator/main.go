package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhammadchandra19/orderbook-aggregator/internal/bootstrap"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/rpc"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/config"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic(err)
	}

	opts := []logger.Option{
		logger.WithLoggingLevel(logger.ParseLevel(cfg.App.LogLevel)),
		logger.WithName(cfg.App.Name),
	}
	if cfg.App.Environment == "development" {
		opts = append(opts, logger.WithConsoleEncoding())
	}

	log, err = logger.NewLogger(opts...)
	if err != nil {
		panic(err)
	}
}

func main() {
	defer log.Sync()

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	app := &bootstrap.Bootstrap{}
	if err := app.Init(ctx, bootstrap.BootstrapConfig{Config: cfg, Logger: log}); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "bootstrap",
		})
		os.Exit(1)
	}

	if app.Feed.Runner != nil {
		if err := app.Feed.Runner.Start(ctx); err != nil {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "start_feed",
			})
			os.Exit(1)
		}
	}

	// Start the engine
	if err := app.Engine.Start(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "start_engine",
		})
		os.Exit(1)
	}

	grpcServer := rpc.NewGrpcServer(cfg.App.Environment, app.Monitor.Health, log)
	go func() {
		if err := grpcServer.Serve(cfg.App.GRPCPort); err != nil {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "serve_grpc",
			})
		}
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:           app.HTTP,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "serve_http",
			})
		}
	}()

	log.Info("Orderbook aggregator started", logger.Field{
		Key:   "symbols",
		Value: cfg.Aggregator.Symbols,
	}, logger.Field{
		Key:   "sources",
		Value: cfg.Feed.Sources,
	}, logger.Field{
		Key:   "http_port",
		Value: cfg.App.HTTPPort,
	})

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal", logger.Field{
		Key:   "signal",
		Value: sig.String(),
	})

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Aggregator.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_http",
		})
	}
	grpcServer.Stop()

	// Stop the engine gracefully
	if err := app.Engine.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_engine",
		})
	}
	cancel()

	app.Close(shutdownCtx)

	log.Info("Orderbook aggregator shutdown complete")
}
