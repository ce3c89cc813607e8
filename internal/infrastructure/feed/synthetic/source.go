package synthetic

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/shopspring/decimal"
)

// Options tunes the generated books.
type Options struct {
	// Depth is the number of levels per side.
	Depth int
	// Seed makes the walk reproducible. Zero seeds from the clock.
	Seed uint64
	// StartPrice is the first mid price of every symbol.
	StartPrice decimal.Decimal
	// TickSize is the distance between adjacent levels.
	TickSize decimal.Decimal
}

// DefaultOptions returns a ten-level book around 100 with a one cent tick.
func DefaultOptions() Options {
	return Options{
		Depth:      10,
		StartPrice: decimal.NewFromInt(100),
		TickSize:   decimal.RequireFromString("0.01"),
	}
}

type ladder struct {
	mid  decimal.Decimal
	bids map[string]bookv1.PriceLevel
	asks map[string]bookv1.PriceLevel
}

// Source is a random-walk book generator. The first call for a symbol returns a full
// snapshot, later calls return the delta to the next step of the walk.
type Source struct {
	options Options
	now     func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	ladders map[string]*ladder
}

// NewSource creates a synthetic source.
func NewSource(options Options) *Source {
	defaults := DefaultOptions()
	if options.Depth <= 0 {
		options.Depth = defaults.Depth
	}
	if !options.StartPrice.IsPositive() {
		options.StartPrice = defaults.StartPrice
	}
	if !options.TickSize.IsPositive() {
		options.TickSize = defaults.TickSize
	}
	seed := options.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Source{
		options: options,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		ladders: make(map[string]*ladder),
	}
}

func (s *Source) FetchUpdate(ctx context.Context, symbol string) (*bookv1.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = bookv1.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.ladders[symbol]
	if !ok {
		next := s.build(s.startPrice(symbol))
		s.ladders[symbol] = next
		return &bookv1.Update{
			Symbol:    symbol,
			Kind:      bookv1.UpdateKindSnapshot,
			Bids:      values(next.bids),
			Asks:      values(next.asks),
			EventTime: s.now(),
		}, nil
	}

	mid := prev.mid.Add(s.options.TickSize.Mul(decimal.NewFromInt(int64(s.rng.IntN(5) - 2))))
	if mid.LessThanOrEqual(s.options.TickSize.Mul(decimal.NewFromInt(int64(s.options.Depth + 1)))) {
		mid = prev.mid
	}
	next := s.build(mid)
	s.ladders[symbol] = next

	return &bookv1.Update{
		Symbol:    symbol,
		Kind:      bookv1.UpdateKindDelta,
		Bids:      diff(prev.bids, next.bids),
		Asks:      diff(prev.asks, next.asks),
		EventTime: s.now(),
	}, nil
}

// startPrice spreads symbols apart so their books differ.
func (s *Source) startPrice(symbol string) decimal.Decimal {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	offset := decimal.NewFromInt(int64(h.Sum32() % 1000))
	return s.options.StartPrice.Add(offset)
}

func (s *Source) build(mid decimal.Decimal) *ladder {
	l := &ladder{
		mid:  mid,
		bids: make(map[string]bookv1.PriceLevel, s.options.Depth),
		asks: make(map[string]bookv1.PriceLevel, s.options.Depth),
	}
	for i := 1; i <= s.options.Depth; i++ {
		step := s.options.TickSize.Mul(decimal.NewFromInt(int64(i)))
		bid := bookv1.PriceLevel{Price: mid.Sub(step), Size: s.size()}
		ask := bookv1.PriceLevel{Price: mid.Add(step), Size: s.size()}
		l.bids[bid.Price.String()] = bid
		l.asks[ask.Price.String()] = ask
	}
	return l
}

func (s *Source) size() decimal.Decimal {
	return decimal.NewFromInt(int64(1 + s.rng.IntN(1000))).Div(decimal.NewFromInt(100))
}

// diff returns the changes turning prev into next, with zero sizes for removed prices.
func diff(prev, next map[string]bookv1.PriceLevel) []bookv1.PriceLevel {
	changes := make([]bookv1.PriceLevel, 0, len(next))
	for key, l := range prev {
		if _, ok := next[key]; !ok {
			changes = append(changes, bookv1.PriceLevel{Price: l.Price, Size: decimal.Zero})
		}
	}
	for key, l := range next {
		if old, ok := prev[key]; !ok || !old.Size.Equal(l.Size) {
			changes = append(changes, l)
		}
	}
	return changes
}

func values(levels map[string]bookv1.PriceLevel) []bookv1.PriceLevel {
	out := make([]bookv1.PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, l)
	}
	return out
}
