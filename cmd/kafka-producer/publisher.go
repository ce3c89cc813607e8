package main

import (
	"context"
	"encoding/json"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	redisfeed "github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/redis"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/redis"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher turns one step of the synthetic walk per symbol into kafka messages.
type Publisher struct {
	writer messageWriter
	source feedv1.Source
	books  *bookMirror
	logger logger.Interface
}

// NewMessage encodes update as a BookEvent keyed by symbol so one symbol stays on one partition.
func NewMessage(update bookv1.Update, at time.Time) (kafka.Message, error) {
	update.EventTime = at
	event := feedv1.NewBookEvent(ulid.Make().String(), update)

	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, errors.TracerFromError(err)
	}
	return kafka.Message{
		Key:   []byte(update.Symbol),
		Value: payload,
		Time:  at,
	}, nil
}

// PublishRound publishes one event per symbol and returns how many were written.
func (p *Publisher) PublishRound(ctx context.Context, symbols []string) (int, error) {
	msgs := make([]kafka.Message, 0, len(symbols))
	now := time.Now()

	for _, symbol := range symbols {
		update, err := p.source.FetchUpdate(ctx, symbol)
		if err != nil {
			return 0, err
		}
		if update == nil {
			continue
		}

		update.EventTime = now
		msg, err := NewMessage(*update, now)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, msg)

		if p.books != nil {
			if err := p.books.apply(ctx, *update); err != nil {
				p.logger.Error(err, logger.Field{Key: "action", Value: "mirror_book"}, logger.Field{Key: "symbol", Value: symbol})
			}
		}
	}

	if len(msgs) == 0 {
		return 0, nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, errors.Trace("write book events", err)
	}
	return len(msgs), nil
}

// bookMirror keeps the full book of each symbol in redis under the key the redis feed reads.
type bookMirror struct {
	client redis.Client
	keys   *redisfeed.Source
	books  map[string]bookv1.Book
}

func newBookMirror(client redis.Client, keys *redisfeed.Source) *bookMirror {
	return &bookMirror{client: client, keys: keys, books: make(map[string]bookv1.Book)}
}

func (m *bookMirror) apply(ctx context.Context, update bookv1.Update) error {
	var book bookv1.Book
	if update.Kind == bookv1.UpdateKindSnapshot {
		book, _ = bookv1.BuildBook(update.Bids, update.Asks)
	} else {
		current := m.books[update.Symbol]
		book, _ = bookv1.ApplyDelta(&bookv1.Snapshot{Bids: current.Bids, Asks: current.Asks}, update)
	}
	m.books[update.Symbol] = book

	payload, err := json.Marshal(feedv1.NewBookEvent(ulid.Make().String(), bookv1.Update{
		Symbol:    update.Symbol,
		Kind:      bookv1.UpdateKindSnapshot,
		Bids:      book.Bids,
		Asks:      book.Asks,
		EventTime: update.EventTime,
	}))
	if err != nil {
		return errors.TracerFromError(err)
	}
	return m.client.Set(ctx, m.keys.Key(update.Symbol), string(payload), 0)
}
