package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	redisfeed "github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/redis"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/synthetic"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/redis"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		brokers   = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		topic     = flag.String("topic", "book-events", "Kafka topic name")
		symbols   = flag.String("symbols", "BTC/USDT,ETH/USDT", "Symbols to publish (comma-separated)")
		delay     = flag.Duration("delay", 100*time.Millisecond, "Delay between rounds of events")
		count     = flag.Int("count", 1000, "Number of rounds to publish, 0 runs until interrupted")
		depth     = flag.Int("depth", 10, "Levels per side")
		seed      = flag.Uint64("seed", 0, "Random walk seed, 0 seeds from the clock")
		redisAddr = flag.String("redis", "", "Also store the latest full book in this redis (optional)")
		keyPrefix = flag.String("redis-key-prefix", "book:", "Key prefix read by the redis feed")
	)
	flag.Parse()

	log, err := logger.NewLogger(logger.WithName("book-producer"), logger.WithConsoleEncoding())
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create Kafka writer
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	publisher := &Publisher{
		writer: writer,
		source: synthetic.NewSource(synthetic.Options{Depth: *depth, Seed: *seed}),
		logger: log,
	}

	if *redisAddr != "" {
		redisConfig := redis.DefaultConfig()
		redisConfig.Addrs = []string{*redisAddr}
		client := redis.NewClient(log, redisConfig)
		if err := client.Connect(ctx); err != nil {
			log.Error(err, logger.Field{Key: "action", Value: "connect_redis"})
			return
		}
		defer client.Disconnect(context.Background())
		keys := redisfeed.NewSource(client, redisConfig, redisfeed.Config{KeyPrefix: *keyPrefix}, log)
		publisher.books = newBookMirror(client, keys)
	}

	targets := bookv1.NormalizeSymbols(strings.Split(*symbols, ","))
	log.Info("Publishing book events", logger.Field{
		Key:   "brokers",
		Value: *brokers,
	}, logger.Field{
		Key:   "topic",
		Value: *topic,
	}, logger.Field{
		Key:   "symbols",
		Value: targets,
	})

	sent := 0
	ticker := time.NewTicker(*delay)
	defer ticker.Stop()

	for round := 0; *count == 0 || round < *count; round++ {
		n, err := publisher.PublishRound(ctx, targets)
		sent += n
		if err != nil && ctx.Err() == nil {
			log.Error(err, logger.Field{Key: "action", Value: "publish_round"}, logger.Field{Key: "round", Value: round})
		}

		select {
		case <-ctx.Done():
			log.Info("Interrupted", logger.Field{Key: "events", Value: sent})
			return
		case <-ticker.C:
		}
	}

	log.Info("Finished publishing", logger.Field{Key: "events", Value: sent})
}
