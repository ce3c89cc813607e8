package synthetic

import (
	"context"
	"testing"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_FetchUpdate(t *testing.T) {
	source := NewSource(Options{Depth: 5, Seed: 42})
	ctx := context.Background()

	first, err := source.FetchUpdate(ctx, "btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, bookv1.UpdateKindSnapshot, first.Kind)
	assert.Equal(t, "BTC/USDT", first.Symbol)
	assert.Len(t, first.Bids, 5)
	assert.Len(t, first.Asks, 5)
	require.NoError(t, first.Validate())

	book, dropped := bookv1.BuildBook(first.Bids, first.Asks)
	assert.Empty(t, dropped)

	for i := 0; i < 200; i++ {
		delta, err := source.FetchUpdate(ctx, "BTC/USDT")
		require.NoError(t, err)
		require.Equal(t, bookv1.UpdateKindDelta, delta.Kind)
		require.NoError(t, delta.Validate())

		var crossed []bookv1.CrossedLevel
		book, crossed = bookv1.ApplyDelta(&bookv1.Snapshot{Bids: book.Bids, Asks: book.Asks}, *delta)
		require.Empty(t, crossed, "step %d", i)
		require.Len(t, book.Bids, 5)
		require.Len(t, book.Asks, 5)
	}
}

func TestSource_Deterministic(t *testing.T) {
	a := NewSource(Options{Seed: 7})
	b := NewSource(Options{Seed: 7})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ua, err := a.FetchUpdate(ctx, "ETH/USDT")
		require.NoError(t, err)
		ub, err := b.FetchUpdate(ctx, "ETH/USDT")
		require.NoError(t, err)

		na := bookv1.Normalize(bookv1.SideBid, ua.Bids)
		nb := bookv1.Normalize(bookv1.SideBid, ub.Bids)
		assert.Equal(t, len(na), len(nb))
		for j := range na {
			assert.True(t, na[j].Price.Equal(nb[j].Price))
		}
	}
}

func TestSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSource(DefaultOptions()).FetchUpdate(ctx, "BTC/USDT")
	assert.ErrorIs(t, err, context.Canceled)
}
