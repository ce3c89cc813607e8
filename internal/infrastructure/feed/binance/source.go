package binance

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	gbinance "github.com/adshao/go-binance/v2"
	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
)

// Config holds the Binance REST settings.
type Config struct {
	BaseURL      string        `env:"BASE_URL"`
	DepthLimit   int           `env:"DEPTH_LIMIT" envDefault:"100"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"5s"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
}

const defaultPollInterval = time.Second

// allowed depth limits of /api/v3/depth
var depthLimits = []int{5, 10, 20, 50, 100, 500, 1000, 5000}

// result is the outcome of the latest poll of one symbol, handed out once.
type result struct {
	update *bookv1.Update
	err    error
}

// Source polls the Binance depth endpoint in the background, one request per symbol
// per PollInterval, and hands the latest snapshot to FetchUpdate without blocking.
type Source struct {
	client   *gbinance.Client
	logger   logger.Interface
	symbols  []string
	limit    int
	interval time.Duration

	mu           sync.Mutex
	lastUpdateID map[string]int64
	results      map[string]result

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ feedv1.Source = (*Source)(nil)
	_ feedv1.Runner = (*Source)(nil)
)

// NewSource creates a Binance depth source for symbols. No API key is needed for market data.
func NewSource(config Config, symbols []string, logger logger.Interface) *Source {
	client := gbinance.NewClient("", "")
	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}

	interval := config.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Source{
		client:       client,
		logger:       logger,
		symbols:      bookv1.NormalizeSymbols(symbols),
		limit:        depthLimit(config.DepthLimit),
		interval:     interval,
		lastUpdateID: make(map[string]int64),
		results:      make(map[string]result),
	}
}

func depthLimit(limit int) int {
	for _, v := range depthLimits {
		if limit <= v {
			return v
		}
	}
	return depthLimits[len(depthLimits)-1]
}

// MarketSymbol converts "BTC/USDT" into Binance's "BTCUSDT".
func MarketSymbol(symbol string) string {
	return strings.ReplaceAll(bookv1.NormalizeSymbol(symbol), "/", "")
}

// Start polls every symbol immediately and then every PollInterval until ctx is
// cancelled or Close is called.
func (s *Source) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("starting binance depth poller", logger.Field{
		Key:   "symbols",
		Value: s.symbols,
	}, logger.Field{
		Key:   "poll_interval",
		Value: s.interval.String(),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

func (s *Source) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.pollAll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Source) pollAll(ctx context.Context) {
	for _, symbol := range s.symbols {
		update, err := s.poll(ctx, symbol)
		if ctx.Err() != nil {
			return
		}
		if err == nil && update == nil {
			continue
		}

		s.mu.Lock()
		if err != nil && s.results[symbol].update != nil {
			// an undelivered book stays pending
			s.mu.Unlock()
			s.logger.Warn("binance depth poll failed", logger.Field{
				Key:   "symbol",
				Value: symbol,
			}, logger.Field{
				Key:   "error",
				Value: err.Error(),
			})
			continue
		}
		s.results[symbol] = result{update: update, err: err}
		s.mu.Unlock()
	}
}

// FetchUpdate hands out the result of the latest poll of symbol once. It returns nil
// when no poll finished since the previous call or the book did not move.
func (s *Source) FetchUpdate(ctx context.Context, symbol string) (*bookv1.Update, error) {
	symbol = bookv1.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[symbol]
	if !ok {
		return nil, nil
	}
	delete(s.results, symbol)
	return r.update, r.err
}

// Close stops the poller and waits for an in-flight request.
func (s *Source) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// poll requests the depth of symbol. It returns nil when the book has not moved since
// the previous successful poll.
func (s *Source) poll(ctx context.Context, symbol string) (*bookv1.Update, error) {
	depth, err := s.client.NewDepthService().Symbol(MarketSymbol(symbol)).Limit(s.limit).Do(ctx)
	if err != nil {
		return nil, errors.NewTracer("binance depth request failed").Wrap(err)
	}

	s.mu.Lock()
	unchanged := depth.LastUpdateID != 0 && s.lastUpdateID[symbol] == depth.LastUpdateID
	s.mu.Unlock()
	if unchanged {
		return nil, nil
	}

	update := &bookv1.Update{
		Symbol:    symbol,
		Kind:      bookv1.UpdateKindSnapshot,
		Bids:      make([]bookv1.PriceLevel, 0, len(depth.Bids)),
		Asks:      make([]bookv1.PriceLevel, 0, len(depth.Asks)),
		EventTime: time.Now(),
	}
	for _, b := range depth.Bids {
		level, err := bookv1.NewPriceLevel(b.Price, b.Quantity)
		if err != nil {
			return nil, errors.NewErrorDetailsWithObject("invalid bid level from binance", string(errors.FeedDecodeError), "bids", b)
		}
		update.Bids = append(update.Bids, level)
	}
	for _, a := range depth.Asks {
		level, err := bookv1.NewPriceLevel(a.Price, a.Quantity)
		if err != nil {
			return nil, errors.NewErrorDetailsWithObject("invalid ask level from binance", string(errors.FeedDecodeError), "asks", a)
		}
		update.Asks = append(update.Asks, level)
	}

	// only a parsed book counts as seen
	s.mu.Lock()
	s.lastUpdateID[symbol] = depth.LastUpdateID
	s.mu.Unlock()

	s.logger.Debug("Fetched binance depth", logger.Field{
		Key:   "symbol",
		Value: symbol,
	}, logger.Field{
		Key:   "last_update_id",
		Value: depth.LastUpdateID,
	})

	return update, nil
}
