package consolidated

import (
	"context"
	"sync"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	feedv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/feed/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Venue is one named upstream of the consolidated book.
type Venue struct {
	Name   string
	Source feedv1.Source
}

// Source merges the books of several venues into one full snapshot per symbol,
// summing sizes at equal prices. A venue that fails keeps contributing its last book.
type Source struct {
	venues []Venue
	logger logger.Interface

	mu    sync.Mutex
	books map[string]map[string]bookv1.Book // symbol -> venue -> book
}

// NewSource creates a consolidated source over venues.
func NewSource(venues []Venue, logger logger.Interface) *Source {
	return &Source{
		venues: venues,
		logger: logger,
		books:  make(map[string]map[string]bookv1.Book),
	}
}

type venueResult struct {
	update *bookv1.Update
	err    error
}

// FetchUpdate queries every venue concurrently. It fails only when all venues fail and
// returns nil when no venue had anything new.
func (s *Source) FetchUpdate(ctx context.Context, symbol string) (*bookv1.Update, error) {
	symbol = bookv1.NormalizeSymbol(symbol)
	results := make([]venueResult, len(s.venues))

	g := new(errgroup.Group)
	for i, venue := range s.venues {
		g.Go(func() error {
			update, err := venue.Source.FetchUpdate(ctx, symbol)
			results[i] = venueResult{update: update, err: err}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	books, ok := s.books[symbol]
	if !ok {
		books = make(map[string]bookv1.Book, len(s.venues))
		s.books[symbol] = books
	}

	failures := errors.NewBaseError()
	changed := false
	for i, venue := range s.venues {
		r := results[i]
		if r.err == nil && r.update != nil {
			r.err = r.update.Validate()
		}
		if r.err != nil {
			failures.AddErrorDetails(errors.NewErrorDetailsWithObject(r.err.Error(), string(errors.TransientFeedError), "venue", venue.Name))
			s.logger.WarnContext(ctx, "Venue fetch failed", logger.Field{
				Key:   "venue",
				Value: venue.Name,
			}, logger.Field{
				Key:   "symbol",
				Value: symbol,
			}, logger.Field{
				Key:   "error",
				Value: r.err.Error(),
			})
			continue
		}
		if r.update == nil {
			continue
		}

		if r.update.Kind == bookv1.UpdateKindSnapshot {
			books[venue.Name], _ = bookv1.BuildBook(r.update.Bids, r.update.Asks)
		} else {
			current := books[venue.Name]
			books[venue.Name], _ = bookv1.ApplyDelta(&bookv1.Snapshot{Bids: current.Bids, Asks: current.Asks}, *r.update)
		}
		changed = true
	}

	if failures.HasDetails() && len(failures.GetDetails()) == len(s.venues) {
		return nil, failures
	}
	if !changed {
		return nil, nil
	}

	update := &bookv1.Update{
		Symbol: symbol,
		Kind:   bookv1.UpdateKindSnapshot,
	}
	for _, venue := range s.venues {
		book := books[venue.Name]
		update.Bids = append(update.Bids, book.Bids...)
		update.Asks = append(update.Asks, book.Asks...)
	}
	update.Bids = Sum(bookv1.SideBid, update.Bids)
	update.Asks = Sum(bookv1.SideAsk, update.Asks)

	return update, nil
}

// Sum merges levels at equal prices by adding their sizes and returns them best-first.
func Sum(side bookv1.Side, levels []bookv1.PriceLevel) []bookv1.PriceLevel {
	byPrice := make(map[string]bookv1.PriceLevel, len(levels))
	for _, l := range levels {
		key := l.Price.String()
		if existing, ok := byPrice[key]; ok {
			existing.Size = existing.Size.Add(l.Size)
			byPrice[key] = existing
			continue
		}
		byPrice[key] = bookv1.PriceLevel{Price: l.Price, Size: l.Size}
	}

	merged := make([]bookv1.PriceLevel, 0, len(byPrice))
	for _, l := range byPrice {
		if l.Size.GreaterThan(decimal.Zero) {
			merged = append(merged, l)
		}
	}
	return bookv1.Normalize(side, merged)
}

// Start starts every venue that runs a background consumer.
func (s *Source) Start(ctx context.Context) error {
	for _, venue := range s.venues {
		if runner, ok := venue.Source.(feedv1.Runner); ok {
			if err := runner.Start(ctx); err != nil {
				return errors.Trace("start venue "+venue.Name, err)
			}
		}
	}
	return nil
}

// Close closes every venue that runs a background consumer.
func (s *Source) Close() error {
	var firstErr error
	for _, venue := range s.venues {
		if runner, ok := venue.Source.(feedv1.Runner); ok {
			if err := runner.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
