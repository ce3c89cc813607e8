package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	messages chan kafka.Message
	closed   chan struct{}
}

func newFakeReader() *fakeReader {
	return &fakeReader{messages: make(chan kafka.Message, 16), closed: make(chan struct{})}
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.messages:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.closed:
		return kafka.Message{}, context.Canceled
	}
}

func (r *fakeReader) Close() error {
	close(r.closed)
	return nil
}

func lv(price, size string) bookv1.PriceLevel {
	return bookv1.MustPriceLevel(price, size)
}

func encode(t *testing.T, update bookv1.Update) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(feedv1.NewBookEvent("01J0000000000000000000000", update))
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestPending(t *testing.T) {
	testCases := []struct {
		name     string
		pushes   []bookv1.Update
		assertFn func(t *testing.T, update *bookv1.Update)
	}{
		{
			name: "nothing pending",
			assertFn: func(t *testing.T, update *bookv1.Update) {
				assert.Nil(t, update)
			},
		},
		{
			name: "deltas combine with the latest change winning",
			pushes: []bookv1.Update{
				{Symbol: "BTC/USDT", Kind: bookv1.UpdateKindDelta, Bids: []bookv1.PriceLevel{lv("100", "1"), lv("99", "1")}},
				{Symbol: "BTC/USDT", Kind: bookv1.UpdateKindDelta, Bids: []bookv1.PriceLevel{lv("100.0", "0")}, Asks: []bookv1.PriceLevel{lv("101", "2")}},
			},
			assertFn: func(t *testing.T, update *bookv1.Update) {
				require.NotNil(t, update)
				assert.Equal(t, bookv1.UpdateKindDelta, update.Kind)
				require.Len(t, update.Bids, 2)
				assert.True(t, update.Bids[0].Size.IsZero())
				assert.Len(t, update.Asks, 1)
			},
		},
		{
			name: "snapshot discards earlier deltas and absorbs later ones",
			pushes: []bookv1.Update{
				{Symbol: "BTC/USDT", Kind: bookv1.UpdateKindDelta, Bids: []bookv1.PriceLevel{lv("50", "1")}},
				{Symbol: "BTC/USDT", Kind: bookv1.UpdateKindSnapshot, Bids: []bookv1.PriceLevel{lv("100", "1")}, Asks: []bookv1.PriceLevel{lv("101", "1")}},
				{Symbol: "BTC/USDT", Kind: bookv1.UpdateKindDelta, Bids: []bookv1.PriceLevel{lv("100", "0"), lv("99", "3")}},
			},
			assertFn: func(t *testing.T, update *bookv1.Update) {
				require.NotNil(t, update)
				assert.Equal(t, bookv1.UpdateKindSnapshot, update.Kind)
				require.Len(t, update.Bids, 1)
				assert.Equal(t, "99", update.Bids[0].Price.String())
				assert.Len(t, update.Asks, 1)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPending()
			for _, u := range tc.pushes {
				p.push(u)
			}
			tc.assertFn(t, p.drain("BTC/USDT"))
			assert.Nil(t, p.drain("BTC/USDT"))
		})
	}
}

func TestSource_Consume(t *testing.T) {
	reader := newFakeReader()
	source := newSource(reader, logger.NewNopLogger())
	require.NoError(t, source.Start(context.Background()))

	reader.messages <- kafka.Message{Value: []byte("not json")}
	reader.messages <- encode(t, bookv1.Update{
		Symbol: "eth-usdt",
		Kind:   bookv1.UpdateKindSnapshot,
		Bids:   []bookv1.PriceLevel{lv("10", "1")},
		Asks:   []bookv1.PriceLevel{lv("11", "1")},
	})

	var update *bookv1.Update
	require.Eventually(t, func() bool {
		var err error
		update, err = source.FetchUpdate(context.Background(), "ETH/USDT")
		return err == nil && update != nil
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "ETH/USDT", update.Symbol)
	assert.Equal(t, bookv1.UpdateKindSnapshot, update.Kind)
	assert.Equal(t, "10", update.Bids[0].Price.String())

	update, err := source.FetchUpdate(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Nil(t, update)

	require.NoError(t, source.Close())
}
