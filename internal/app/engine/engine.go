package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	aggregatorv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/aggregator/v1"
	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	snapshotv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/snapshot/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Engine refreshes every configured symbol on a fixed tick and serves reads from its store.
type Engine struct {
	// Core components
	store   snapshotv1.Store
	feed    feedv1.Source
	logger  logger.Interface
	monitor aggregatorv1.Monitor

	symbols []string

	// Configuration
	tickInterval      time.Duration
	feedTimeout       time.Duration
	degradedThreshold int
	concurrency       int

	cycle        atomic.Uint64
	registerOnce sync.Once
	health       *healthTracker

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates an engine with DefaultEngineOptions.
func NewEngine(
	store snapshotv1.Store,
	feed feedv1.Source,
	symbols []string,
	logger logger.Interface,
) (*Engine, error) {
	return NewEngineWithOptions(store, feed, symbols, logger, DefaultEngineOptions())
}

// NewEngineWithOptions creates an engine with custom options. It fails with a
// fatal configuration error when symbols is empty or the tick interval is not positive.
func NewEngineWithOptions(
	store snapshotv1.Store,
	feed feedv1.Source,
	symbols []string,
	logger logger.Interface,
	options *Options,
) (*Engine, error) {
	if options == nil {
		options = DefaultEngineOptions()
	}

	normalized := bookv1.NormalizeSymbols(symbols)
	if len(normalized) == 0 {
		return nil, errors.NewErrorDetails("at least one symbol must be configured", string(errors.FatalConfigurationError), "symbols")
	}
	if options.TickInterval <= 0 {
		return nil, errors.NewErrorDetails("tick interval must be positive", string(errors.FatalConfigurationError), "tick_interval")
	}
	if store == nil || feed == nil {
		return nil, errors.NewErrorDetails("store and feed are required", string(errors.FatalConfigurationError), "engine")
	}

	concurrency := options.MaxConcurrency
	if concurrency <= 0 || concurrency > len(normalized) {
		concurrency = len(normalized)
	}

	return &Engine{
		store:             store,
		feed:              feed,
		logger:            logger,
		monitor:           options.monitor(),
		symbols:           normalized,
		tickInterval:      options.TickInterval,
		feedTimeout:       options.feedTimeout(),
		degradedThreshold: options.degradedThreshold(),
		concurrency:       concurrency,
		health:            newHealthTracker(normalized),
	}, nil
}

// Start registers every symbol and runs the tick loop in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine already running")
	}

	e.registerOnce.Do(e.registerSymbols)

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Run(runCtx)

		// the parent context may end the loop without Stop
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.logger.Info("Aggregation engine started",
		logger.Field{Key: "symbols", Value: e.symbols},
		logger.Field{Key: "tick_interval", Value: e.tickInterval.String()},
		logger.Field{Key: "feed_timeout", Value: e.feedTimeout.String()},
	)

	return nil
}

// Stop cancels the tick loop and waits for it, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	// Wait for the loop to finish with timeout
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.logger.Info("Aggregation engine stopped gracefully", logger.Field{
			Key:   "cycle",
			Value: e.Cycle(),
		})
		return nil
	case <-ctx.Done():
		e.logger.Warn("Engine stop timeout exceeded")
		return ctx.Err()
	}
}

// Run executes ticks until ctx is cancelled. A tick that overruns the interval is
// followed immediately by the next one, missed ticks are not replayed.
func (e *Engine) Run(ctx context.Context) {
	e.registerOnce.Do(e.registerSymbols)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Tick loop shutting down", logger.Field{Key: "reason", Value: ctx.Err().Error()})
			return
		default:
		}

		started := time.Now()
		e.Tick(ctx)

		wait := e.tickInterval - time.Since(started)
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info("Tick loop shutting down", logger.Field{Key: "reason", Value: ctx.Err().Error()})
			return
		case <-timer.C:
		}
	}
}

// Tick refreshes every symbol once and returns the cycle number it ran as.
func (e *Engine) Tick(ctx context.Context) uint64 {
	e.registerOnce.Do(e.registerSymbols)

	cycle := e.cycle.Add(1)
	started := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for _, symbol := range e.symbols {
		g.Go(func() error {
			e.refresh(ctx, symbol, cycle)
			return nil
		})
	}
	_ = g.Wait()

	e.monitor.ObserveTick(cycle, time.Since(started))
	return cycle
}

// refresh fetches and applies one update for symbol. Failures stay with symbol.
func (e *Engine) refresh(ctx context.Context, symbol string, cycle uint64) {
	update, err := e.fetch(ctx, symbol)
	if err == nil && update != nil {
		err = e.apply(symbol, update, cycle)
	}

	if err != nil {
		if ctx.Err() != nil {
			// shutting down, not a feed problem
			return
		}
		e.recordFailure(symbol, cycle, err)
		return
	}

	if update != nil {
		e.monitor.ObserveUpdate(symbol, update.Kind)
	}
	e.recordSuccess(symbol, cycle, update != nil)
}

// fetch calls the feed with a timeout. A call that outlives the timeout is abandoned
// and its result discarded.
func (e *Engine) fetch(ctx context.Context, symbol string) (*bookv1.Update, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.feedTimeout)
	defer cancel()

	type result struct {
		update *bookv1.Update
		err    error
	}
	done := make(chan result, 1)

	go func() {
		update, err := e.feed.FetchUpdate(fetchCtx, symbol)
		done <- result{update: update, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, errors.Trace("feed fetch failed", r.err)
		}
		return r.update, nil
	case <-fetchCtx.Done():
		return nil, errors.NewErrorDetailsWithObject(
			fmt.Sprintf("feed did not answer within %s", e.feedTimeout),
			string(errors.TransientFeedError),
			"feed_timeout",
			symbol,
		)
	}
}

func (e *Engine) apply(symbol string, update *bookv1.Update, cycle uint64) error {
	if update.Symbol != "" && bookv1.NormalizeSymbol(update.Symbol) != symbol {
		return bookv1.NewInvalidUpdateError(
			fmt.Sprintf("feed returned %q for %q", update.Symbol, symbol),
			"symbol",
			update.Symbol,
		)
	}
	if err := update.Validate(); err != nil {
		return err
	}

	switch update.Kind {
	case bookv1.UpdateKindSnapshot:
		return e.store.Put(symbol, bookv1.Snapshot{
			Symbol: symbol,
			Bids:   update.Bids,
			Asks:   update.Asks,
			Cycle:  cycle,
		})
	default:
		delta := *update
		delta.Cycle = cycle
		return e.store.Merge(symbol, delta)
	}
}

func (e *Engine) recordFailure(symbol string, cycle uint64, err error) {
	failures, degraded := e.health.failure(symbol, err, e.degradedThreshold)
	e.monitor.ObserveFailure(symbol, failures)

	fields := []logger.Field{
		{Key: "action", Value: "refresh_symbol"},
		{Key: "symbol", Value: symbol},
		{Key: "cycle", Value: cycle},
		{Key: "consecutive_failures", Value: failures},
	}

	if failures == 1 {
		e.logger.Error(errors.TracerFromError(err), fields...)
	}

	switch {
	case degraded:
		e.logger.Warn("Symbol degraded, serving last known snapshot", append(fields, logger.Field{Key: "error", Value: err.Error()})...)
		e.monitor.ObserveHealth(symbol, true)
	case failures > 1:
		e.logger.Debug("Symbol refresh failed", append(fields, logger.Field{Key: "error", Value: err.Error()})...)
	}
}

func (e *Engine) recordSuccess(symbol string, cycle uint64, updated bool) {
	if recovered := e.health.success(symbol, cycle, updated, time.Now()); recovered {
		e.logger.Info("Symbol recovered", logger.Field{
			Key:   "symbol",
			Value: symbol,
		}, logger.Field{
			Key:   "cycle",
			Value: cycle,
		})
		e.monitor.ObserveHealth(symbol, false)
	}
}

func (e *Engine) registerSymbols() {
	for _, symbol := range e.symbols {
		e.store.Register(symbol)
	}
}

// Get returns a copy of the current snapshot of symbol.
func (e *Engine) Get(symbol string) (*bookv1.Snapshot, error) {
	return e.store.Get(bookv1.NormalizeSymbol(symbol))
}

// Symbols returns the configured symbols in configuration order.
func (e *Engine) Symbols() []string {
	return append([]string(nil), e.symbols...)
}

// Cycle returns the number of ticks started so far.
func (e *Engine) Cycle() uint64 {
	return e.cycle.Load()
}

// Health returns the refresh status of every symbol.
func (e *Engine) Health() []aggregatorv1.SymbolHealth {
	return e.health.snapshot(e.symbols)
}

// IsRunning reports whether the tick loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
