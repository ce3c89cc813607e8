package kafka

import (
	"context"
	"sync"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Config holds the book event topic settings.
type Config struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"book-events"`
	GroupID string   `env:"GROUP_ID" envDefault:"orderbook-aggregator"`
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Source consumes BookEvent messages in the background and hands out what arrived
// since the previous FetchUpdate for each symbol.
type Source struct {
	reader  messageReader
	logger  logger.Interface
	pending *pending

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ feedv1.Source = (*Source)(nil)
	_ feedv1.Runner = (*Source)(nil)
)

// NewSource creates a kafka book event source.
func NewSource(config Config, logger logger.Interface) *Source {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return newSource(reader, logger)
}

func newSource(reader messageReader, logger logger.Interface) *Source {
	return &Source{
		reader:  reader,
		logger:  logger,
		pending: newPending(),
	}
}

// Start runs the consumer loop until ctx is cancelled or Close is called.
func (s *Source) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.InfoContext(ctx, "starting book event consumer", logger.Field{
		Key:   "action",
		Value: "book_consumer_start",
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ctx)
	}()
	return nil
}

func (s *Source) consume(ctx context.Context) {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.InfoContext(ctx, "context done", logger.Field{
					Key:   "action",
					Value: "book_consumer_stop",
				})
				return
			}
			s.logger.ErrorContext(ctx, err, logger.Field{
				Key:   "action",
				Value: "read_message",
			})
			continue
		}

		update, err := feedv1.DecodeBookEvent(msg.Value)
		if err != nil {
			s.logger.ErrorContext(ctx, err, logger.Field{
				Key:   "action",
				Value: "decode_book_event",
			}, logger.Field{
				Key:   "offset",
				Value: msg.Offset,
			})
			continue
		}

		s.pending.push(update)
	}
}

// FetchUpdate drains the coalesced events of symbol. It never blocks on the broker.
func (s *Source) FetchUpdate(ctx context.Context, symbol string) (*bookv1.Update, error) {
	return s.pending.drain(bookv1.NormalizeSymbol(symbol)), nil
}

// Close stops the consumer loop and closes the reader.
func (s *Source) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.reader.Close()
	s.wg.Wait()
	return err
}
