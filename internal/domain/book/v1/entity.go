package bookv1

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one side of an order book.
type Side string

const (
	// SideBid is the buy side, best price first means highest price first.
	SideBid Side = "bid"
	// SideAsk is the sell side, best price first means lowest price first.
	SideAsk Side = "ask"
)

// PriceLevel is the aggregate size resting at one price.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// NewPriceLevel parses price and size from their decimal string form.
func NewPriceLevel(price, size string) (PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return PriceLevel{}, err
	}
	s, err := decimal.NewFromString(size)
	if err != nil {
		return PriceLevel{}, err
	}
	return PriceLevel{Price: p, Size: s}, nil
}

// MustPriceLevel is like NewPriceLevel but panics on malformed input.
func MustPriceLevel(price, size string) PriceLevel {
	return PriceLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

// Snapshot is the consolidated book of one symbol at a point in time.
// Bids are sorted by descending price and asks by ascending price.
type Snapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Cycle     uint64       `json:"cycle"`
	Version   uint64       `json:"version"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// NewEmptySnapshot returns the snapshot a symbol starts with when it is registered.
func NewEmptySnapshot(symbol string) *Snapshot {
	return &Snapshot{
		Symbol: symbol,
		Bids:   []PriceLevel{},
		Asks:   []PriceLevel{},
	}
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	cp := *s
	cp.Bids = append(make([]PriceLevel, 0, len(s.Bids)), s.Bids...)
	cp.Asks = append(make([]PriceLevel, 0, len(s.Asks)), s.Asks...)
	return &cp
}

// BestBid returns the highest bid, if any.
func (s *Snapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (s *Snapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// IsCrossed reports whether the best bid is at or above the best ask.
func (s *Snapshot) IsCrossed() bool {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	return okBid && okAsk && bid.Price.GreaterThanOrEqual(ask.Price)
}

// UpdateKind tells the engine whether an update replaces or amends a book.
type UpdateKind string

const (
	// UpdateKindSnapshot replaces the whole book.
	UpdateKindSnapshot UpdateKind = "snapshot"
	// UpdateKindDelta upserts levels with positive size and removes levels with zero size.
	UpdateKindDelta UpdateKind = "delta"
)

// Update is what a feed source hands to the engine for one symbol.
type Update struct {
	Symbol    string
	Kind      UpdateKind
	Bids      []PriceLevel
	Asks      []PriceLevel
	EventTime time.Time

	// Cycle is stamped by the engine before the update is applied.
	Cycle uint64
}

// Book holds both sides of a book without metadata.
type Book struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// CrossedLevel is a level removed while repairing a crossed book.
type CrossedLevel struct {
	Side  Side
	Level PriceLevel
}
