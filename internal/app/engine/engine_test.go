package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedmock "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1/mock"
	snapshotmock "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/snapshot/v1/mock"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/usecase/snapshot"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testFixture struct {
	ctrl     *gomock.Controller
	mockFeed *feedmock.MockSource
	store    *snapshot.Store
	monitor  *recordingMonitor
	logger   logger.Interface
}

func setupTestFixture(t *testing.T) *testFixture {
	ctrl := gomock.NewController(t)

	return &testFixture{
		ctrl:     ctrl,
		mockFeed: feedmock.NewMockSource(ctrl),
		store:    snapshot.NewStore(logger.NewNopLogger(), 0),
		monitor:  &recordingMonitor{health: map[string]bool{}},
		logger:   logger.NewNopLogger(),
	}
}

func (f *testFixture) engine(t *testing.T, symbols ...string) *Engine {
	t.Helper()

	e, err := NewEngineWithOptions(f.store, f.mockFeed, symbols, f.logger, &Options{
		TickInterval:      10 * time.Millisecond,
		FeedTimeout:       50 * time.Millisecond,
		DegradedThreshold: 3,
		Monitor:           f.monitor,
	})
	require.NoError(t, err)
	return e
}

type recordingMonitor struct {
	mu       sync.Mutex
	ticks    int
	updates  int
	failures int
	health   map[string]bool
}

func (m *recordingMonitor) ObserveTick(uint64, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
}

func (m *recordingMonitor) ObserveUpdate(string, bookv1.UpdateKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
}

func (m *recordingMonitor) ObserveFailure(string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *recordingMonitor) ObserveHealth(symbol string, degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[symbol] = degraded
}

func (m *recordingMonitor) degraded(symbol string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.health[symbol]
	return d, ok
}

// sourceFunc adapts a function to feedv1.Source.
type sourceFunc func(ctx context.Context, symbol string) (*bookv1.Update, error)

func (f sourceFunc) FetchUpdate(ctx context.Context, symbol string) (*bookv1.Update, error) {
	return f(ctx, symbol)
}

func lv(price, size string) bookv1.PriceLevel {
	return bookv1.MustPriceLevel(price, size)
}

func fullBook(symbol string, bid, ask string) *bookv1.Update {
	return &bookv1.Update{
		Symbol: symbol,
		Kind:   bookv1.UpdateKindSnapshot,
		Bids:   []bookv1.PriceLevel{lv(bid, "1")},
		Asks:   []bookv1.PriceLevel{lv(ask, "1")},
	}
}

func TestNewEngine(t *testing.T) {
	testCases := []struct {
		name     string
		symbols  []string
		options  *Options
		assertFn func(t *testing.T, e *Engine, err error)
	}{
		{
			name:    "normalizes and deduplicates symbols",
			symbols: []string{"btc-usdt", "BTC/USDT", "eth/usdt"},
			assertFn: func(t *testing.T, e *Engine, err error) {
				require.NoError(t, err)
				assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, e.Symbols())
				assert.Equal(t, 20*time.Millisecond, e.feedTimeout)
				assert.Equal(t, 2, e.concurrency)
			},
		},
		{
			name:    "empty symbol list",
			symbols: []string{" ", ""},
			assertFn: func(t *testing.T, e *Engine, err error) {
				assert.Nil(t, e)
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.FatalConfigurationError)))
			},
		},
		{
			name:    "non-positive tick interval",
			symbols: []string{"BTC/USDT"},
			options: &Options{TickInterval: 0},
			assertFn: func(t *testing.T, e *Engine, err error) {
				assert.Nil(t, e)
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.FatalConfigurationError)))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			options := tc.options
			if options == nil {
				options = DefaultEngineOptions()
			}

			e, err := NewEngineWithOptions(f.store, f.mockFeed, tc.symbols, f.logger, options)
			tc.assertFn(t, e, err)
		})
	}
}

func TestEngine_TickRegistersSymbols(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := snapshotmock.NewMockStore(ctrl)
	feed := feedmock.NewMockSource(ctrl)

	gomock.InOrder(
		store.EXPECT().Register("BTC/USDT").Return(true).Times(1),
		feed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(fullBook("BTC/USDT", "100", "101"), nil),
		store.EXPECT().Put("BTC/USDT", gomock.Any()).DoAndReturn(func(symbol string, snap bookv1.Snapshot) error {
			assert.Equal(t, uint64(1), snap.Cycle)
			assert.Len(t, snap.Bids, 1)
			return nil
		}),
	)
	feed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(nil, nil)

	e, err := NewEngine(store, feed, []string{"BTC/USDT"}, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), e.Tick(context.Background()))
	assert.Equal(t, uint64(2), e.Tick(context.Background()))
}

func TestEngine_Tick(t *testing.T) {
	testCases := []struct {
		name     string
		mockFn   func(f *testFixture)
		assertFn func(t *testing.T, f *testFixture, e *Engine)
	}{
		{
			name: "full snapshot replaces the book",
			mockFn: func(f *testFixture) {
				f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(fullBook("BTC/USDT", "100", "101"), nil)
			},
			assertFn: func(t *testing.T, f *testFixture, e *Engine) {
				snap, err := e.Get("btc/usdt")
				require.NoError(t, err)
				assert.Equal(t, "100", snap.Bids[0].Price.String())
				assert.Equal(t, "101", snap.Asks[0].Price.String())
				assert.Equal(t, uint64(1), snap.Cycle)
				assert.Equal(t, uint64(1), e.Health()[0].LastUpdateCycle)
			},
		},
		{
			name: "delta merges into the book",
			mockFn: func(f *testFixture) {
				require.True(t, f.store.Register("BTC/USDT"))
				require.NoError(t, f.store.Put("BTC/USDT", bookv1.Snapshot{
					Bids: []bookv1.PriceLevel{lv("100", "1"), lv("99", "1")},
					Asks: []bookv1.PriceLevel{lv("101", "1")},
				}))
				f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(&bookv1.Update{
					Kind: bookv1.UpdateKindDelta,
					Bids: []bookv1.PriceLevel{lv("99", "0")},
					Asks: []bookv1.PriceLevel{lv("101.5", "2")},
				}, nil)
			},
			assertFn: func(t *testing.T, f *testFixture, e *Engine) {
				snap, err := e.Get("BTC/USDT")
				require.NoError(t, err)
				require.Len(t, snap.Bids, 1)
				require.Len(t, snap.Asks, 2)
				assert.Equal(t, "101.5", snap.Asks[1].Price.String())
				assert.Equal(t, uint64(2), snap.Version)
			},
		},
		{
			name: "no new data keeps the book and counts as success",
			mockFn: func(f *testFixture) {
				f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(nil, nil)
			},
			assertFn: func(t *testing.T, f *testFixture, e *Engine) {
				snap, err := e.Get("BTC/USDT")
				require.NoError(t, err)
				assert.Zero(t, snap.Version)
				assert.Zero(t, e.Health()[0].ConsecutiveFailures)
				assert.False(t, e.Health()[0].LastSuccessAt.IsZero())
			},
		},
		{
			name: "update for another symbol is rejected",
			mockFn: func(f *testFixture) {
				f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(fullBook("ETH/USDT", "10", "11"), nil)
			},
			assertFn: func(t *testing.T, f *testFixture, e *Engine) {
				snap, err := e.Get("BTC/USDT")
				require.NoError(t, err)
				assert.Empty(t, snap.Bids)
				assert.Equal(t, 1, e.Health()[0].ConsecutiveFailures)
			},
		},
		{
			name: "invalid level is rejected and the last good book stays",
			mockFn: func(f *testFixture) {
				require.True(t, f.store.Register("BTC/USDT"))
				require.NoError(t, f.store.Put("BTC/USDT", bookv1.Snapshot{Bids: []bookv1.PriceLevel{lv("100", "1")}}))
				f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(&bookv1.Update{
					Kind: bookv1.UpdateKindDelta,
					Bids: []bookv1.PriceLevel{lv("100", "-2")},
				}, nil)
			},
			assertFn: func(t *testing.T, f *testFixture, e *Engine) {
				snap, err := e.Get("BTC/USDT")
				require.NoError(t, err)
				assert.Equal(t, "1", snap.Bids[0].Size.String())
				assert.Contains(t, e.Health()[0].LastError, "size")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			tc.mockFn(f)
			e := f.engine(t, "BTC/USDT")

			e.Tick(context.Background())
			tc.assertFn(t, f, e)
		})
	}
}

func TestEngine_FailureIsolation(t *testing.T) {
	f := setupTestFixture(t)
	f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "AAA/USD").Return(nil, fmt.Errorf("venue unreachable")).Times(2)
	f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BBB/USD").Return(fullBook("BBB/USD", "10", "11"), nil)
	f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BBB/USD").Return(fullBook("BBB/USD", "12", "13"), nil)
	e := f.engine(t, "AAA/USD", "BBB/USD")

	e.Tick(context.Background())
	e.Tick(context.Background())

	b, err := e.Get("BBB/USD")
	require.NoError(t, err)
	assert.Equal(t, "12", b.Bids[0].Price.String())
	assert.Equal(t, uint64(2), b.Cycle)

	a, err := e.Get("AAA/USD")
	require.NoError(t, err)
	assert.Empty(t, a.Bids)

	health := e.Health()
	assert.Equal(t, 2, health[0].ConsecutiveFailures)
	assert.Contains(t, health[0].LastError, "venue unreachable")
	assert.False(t, health[0].Degraded)
	assert.Zero(t, health[1].ConsecutiveFailures)
}

func TestEngine_DegradedAndRecovery(t *testing.T) {
	f := setupTestFixture(t)
	gomock.InOrder(
		f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(fullBook("BTC/USDT", "100", "101"), nil),
		f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(nil, fmt.Errorf("boom")).Times(3),
		f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(nil, nil),
	)
	e := f.engine(t, "BTC/USDT")
	ctx := context.Background()

	e.Tick(ctx)
	e.Tick(ctx)
	e.Tick(ctx)
	assert.False(t, e.Health()[0].Degraded)

	e.Tick(ctx)
	assert.True(t, e.Health()[0].Degraded)
	degraded, ok := f.monitor.degraded("BTC/USDT")
	assert.True(t, ok)
	assert.True(t, degraded)

	// last good snapshot is still served
	snap, err := e.Get("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Cycle)

	e.Tick(ctx)
	assert.False(t, e.Health()[0].Degraded)
	assert.Zero(t, e.Health()[0].ConsecutiveFailures)
	degraded, _ = f.monitor.degraded("BTC/USDT")
	assert.False(t, degraded)
	assert.Equal(t, 5, f.monitor.ticks)
	assert.Equal(t, 3, f.monitor.failures)
	assert.Equal(t, 1, f.monitor.updates)
}

func TestEngine_FeedTimeout(t *testing.T) {
	f := setupTestFixture(t)
	f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "SLOW/USD").DoAndReturn(func(ctx context.Context, symbol string) (*bookv1.Update, error) {
		<-ctx.Done()
		return fullBook(symbol, "1", "2"), nil
	})
	f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "FAST/USD").Return(fullBook("FAST/USD", "1", "2"), nil)
	e := f.engine(t, "SLOW/USD", "FAST/USD")

	started := time.Now()
	e.Tick(context.Background())
	assert.Less(t, time.Since(started), time.Second)

	slow, err := e.Get("SLOW/USD")
	require.NoError(t, err)
	assert.Empty(t, slow.Bids)
	assert.Equal(t, 1, e.Health()[0].ConsecutiveFailures)

	fast, err := e.Get("FAST/USD")
	require.NoError(t, err)
	assert.Len(t, fast.Bids, 1)
}

func TestEngine_Run(t *testing.T) {
	var calls atomic.Int64
	feed := sourceFunc(func(ctx context.Context, symbol string) (*bookv1.Update, error) {
		n := calls.Add(1)
		return fullBook(symbol, fmt.Sprintf("%d", 100+n), fmt.Sprintf("%d", 1000+n)), nil
	})

	store := snapshot.NewStore(logger.NewNopLogger(), 0)
	e, err := NewEngineWithOptions(store, feed, []string{"BTC/USDT", "ETH/USDT"}, logger.NewNopLogger(), &Options{
		TickInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	assert.Error(t, e.Start(ctx))
	assert.True(t, e.IsRunning())

	require.Eventually(t, func() bool {
		btc, err := e.Get("BTC/USDT")
		if err != nil || btc.Version < 3 {
			return false
		}
		eth, err := e.Get("ETH/USDT")
		return err == nil && eth.Version >= 3
	}, 2*time.Second, 5*time.Millisecond)

	_, err = e.Get("XRP/USDT")
	assert.True(t, bookv1.IsUnknownSymbol(err))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, e.Stop(stopCtx))
	assert.False(t, e.IsRunning())

	stoppedAt := e.Cycle()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stoppedAt, e.Cycle())

	btc, err := e.Get("BTC/USDT")
	require.NoError(t, err)
	assert.False(t, btc.IsCrossed())
	assert.LessOrEqual(t, btc.Cycle, stoppedAt)
}

func TestEngine_ParentContextCancelled(t *testing.T) {
	f := setupTestFixture(t)
	f.mockFeed.EXPECT().FetchUpdate(gomock.Any(), "BTC/USDT").Return(nil, nil).AnyTimes()
	e := f.engine(t, "BTC/USDT")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	assert.True(t, e.IsRunning())

	cancel()
	require.Eventually(t, func() bool {
		return !e.IsRunning()
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Start(context.Background()))
	assert.True(t, e.IsRunning())

	stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	require.NoError(t, e.Stop(stopCtx))
	assert.False(t, e.IsRunning())
}
