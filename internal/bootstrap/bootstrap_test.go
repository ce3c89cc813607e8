package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/consolidated"
	redisfeed "github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/redis"
	"github.com/muhammadchandra19/orderbook-aggregator/internal/infrastructure/feed/synthetic"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/config"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/redis"
	redismock "github.com/muhammadchandra19/orderbook-aggregator/pkg/redis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testConfig(sources ...string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Environment: "test"},
		Aggregator: config.AggregatorConfig{
			Symbols:           []string{"BTC/USDT", "ETH/USDT"},
			TickInterval:      10 * time.Millisecond,
			PushInterval:      time.Second,
			DegradedThreshold: 3,
		},
		Feed:      config.FeedConfig{Sources: sources, SyntheticDepth: 5, SyntheticSeed: 1},
		Redis:     *redis.DefaultConfig(),
		RedisFeed: redisfeed.Config{KeyPrefix: "book:"},
	}
}

func TestBootstrap_Init(t *testing.T) {
	testCases := []struct {
		name     string
		config   *config.Config
		mockFn   func(m *redismock.MockClient)
		assertFn func(t *testing.T, b *Bootstrap, err error)
	}{
		{
			name:   "single synthetic source",
			config: testConfig(config.SourceSynthetic),
			assertFn: func(t *testing.T, b *Bootstrap, err error) {
				require.NoError(t, err)
				assert.IsType(t, &synthetic.Source{}, b.Feed.Source)
				assert.Nil(t, b.Feed.Runner)
				assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, b.Engine.Symbols())
			},
		},
		{
			name:   "several sources are consolidated",
			config: testConfig(config.SourceSynthetic, config.SourceRedis),
			assertFn: func(t *testing.T, b *Bootstrap, err error) {
				require.NoError(t, err)
				assert.IsType(t, &consolidated.Source{}, b.Feed.Source)
				assert.NotNil(t, b.Feed.Runner)
			},
		},
		{
			name: "invalid config",
			config: func() *config.Config {
				c := testConfig(config.SourceSynthetic)
				c.Aggregator.Symbols = nil
				return c
			}(),
			assertFn: func(t *testing.T, b *Bootstrap, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.FatalConfigurationError)))
				assert.Nil(t, b.Engine)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := redismock.NewMockClient(ctrl)
			if tc.mockFn != nil {
				tc.mockFn(client)
			}

			b := &Bootstrap{}
			err := b.Init(context.Background(), BootstrapConfig{
				Config: tc.config,
				Logger: logger.NewNopLogger(),
				Redis:  client,
			})
			tc.assertFn(t, b, err)
		})
	}
}

func TestBootstrap_EndToEnd(t *testing.T) {
	b := &Bootstrap{}
	require.NoError(t, b.Init(context.Background(), BootstrapConfig{
		Config: testConfig(config.SourceSynthetic),
		Logger: logger.NewNopLogger(),
	}))

	srv := httptest.NewServer(b.HTTP)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, b.Engine.Start(context.Background()))
	require.Eventually(t, func() bool {
		snap, err := b.Engine.Get("ETH/USDT")
		return err == nil && len(snap.Bids) == 5 && len(snap.Asks) == 5 && snap.Version >= 2
	}, 2*time.Second, 5*time.Millisecond)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Engine.Stop(ctx))
	b.Close(ctx)
}

func TestBootstrap_ProbePingsRedis(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := redismock.NewMockClient(ctrl)
	client.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	gomock.InOrder(
		client.EXPECT().Ping(gomock.Any()).Return(nil),
		client.EXPECT().Ping(gomock.Any()).Return(errors.NewErrorDetails("Failed to ping Redis", string(errors.RedisPingError), "ping")),
	)
	client.EXPECT().Disconnect(gomock.Any()).Return(nil)

	b := &Bootstrap{}
	require.NoError(t, b.Init(context.Background(), BootstrapConfig{
		Config: testConfig(config.SourceRedis),
		Logger: logger.NewNopLogger(),
		Redis:  client,
	}))
	require.NoError(t, b.Engine.Start(context.Background()))

	srv := httptest.NewServer(b.HTTP)
	defer srv.Close()

	for _, want := range []int{http.StatusOK, http.StatusServiceUnavailable} {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Engine.Stop(ctx))
	b.Close(ctx)
}
