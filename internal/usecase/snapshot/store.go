package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
)

// entry is the state of one symbol. Writers hold mu for the whole read-modify-write,
// readers only load the current pointer. A published snapshot is never mutated.
type entry struct {
	mu      sync.Mutex
	current atomic.Pointer[bookv1.Snapshot]
}

// Store keeps the latest snapshot per symbol in memory.
type Store struct {
	logger   logger.Interface
	maxDepth int
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewStore creates an empty store. maxDepth caps the number of levels kept per side,
// zero keeps every level.
func NewStore(logger logger.Interface, maxDepth int) *Store {
	return &Store{
		logger:   logger,
		maxDepth: maxDepth,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Register creates an empty snapshot for symbol.
func (s *Store) Register(symbol string) bool {
	symbol = bookv1.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[symbol]; ok {
		return false
	}

	e := &entry{}
	e.current.Store(bookv1.NewEmptySnapshot(symbol))
	s.entries[symbol] = e
	s.order = append(s.order, symbol)
	return true
}

// Symbols lists registered symbols in registration order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

// Get returns a deep copy of the current snapshot of symbol.
func (s *Store) Get(symbol string) (*bookv1.Snapshot, error) {
	e, symbol, ok := s.lookup(symbol)
	if !ok {
		return nil, bookv1.NewUnknownSymbolError(symbol)
	}
	return e.current.Load().Clone(), nil
}

// Put replaces the book of symbol. Levels are sorted and deduplicated, and a crossed
// book is repaired before it is published.
func (s *Store) Put(symbol string, snapshot bookv1.Snapshot) error {
	e, symbol, ok := s.lookup(symbol)
	if !ok {
		return bookv1.NewUnknownSymbolError(symbol)
	}
	if err := validateSides(snapshot.Bids, snapshot.Asks); err != nil {
		return err
	}

	book, dropped := bookv1.BuildBook(snapshot.Bids, snapshot.Asks)

	e.mu.Lock()
	s.publish(e, symbol, book, snapshot.Cycle)
	e.mu.Unlock()

	s.reportCrossed(symbol, "put", snapshot.Cycle, dropped)
	return nil
}

// Merge applies delta to the current book of symbol.
func (s *Store) Merge(symbol string, delta bookv1.Update) error {
	e, symbol, ok := s.lookup(symbol)
	if !ok {
		return bookv1.NewUnknownSymbolError(symbol)
	}
	if err := validateSides(delta.Bids, delta.Asks); err != nil {
		return err
	}

	e.mu.Lock()
	book, dropped := bookv1.ApplyDelta(e.current.Load(), delta)
	s.publish(e, symbol, book, delta.Cycle)
	e.mu.Unlock()

	s.reportCrossed(symbol, "merge", delta.Cycle, dropped)
	return nil
}

func (s *Store) lookup(symbol string) (*entry, string, bool) {
	symbol = bookv1.NormalizeSymbol(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[symbol]
	return e, symbol, ok
}

// publish must be called with e.mu held.
func (s *Store) publish(e *entry, symbol string, book bookv1.Book, cycle uint64) {
	prev := e.current.Load()
	e.current.Store(&bookv1.Snapshot{
		Symbol:    symbol,
		Bids:      bookv1.Truncate(book.Bids, s.maxDepth),
		Asks:      bookv1.Truncate(book.Asks, s.maxDepth),
		Cycle:     cycle,
		Version:   prev.Version + 1,
		UpdatedAt: s.now(),
	})
}

func (s *Store) reportCrossed(symbol, action string, cycle uint64, dropped []bookv1.CrossedLevel) {
	if len(dropped) == 0 {
		return
	}

	s.logger.Warn("crossed book repaired",
		logger.Field{Key: "code", Value: errors.CrossedBookConflict},
		logger.Field{Key: "symbol", Value: symbol},
		logger.Field{Key: "action", Value: action},
		logger.Field{Key: "cycle", Value: cycle},
		logger.Field{Key: "dropped", Value: dropped},
	)
}

func validateSides(bids, asks []bookv1.PriceLevel) error {
	if err := bookv1.ValidateLevels(bookv1.SideBid, bids); err != nil {
		return err
	}
	return bookv1.ValidateLevels(bookv1.SideAsk, asks)
}
