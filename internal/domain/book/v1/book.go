package bookv1

import (
	"github.com/shopspring/decimal"
)

// PriceSet is a set of prices keyed by their canonical decimal form.
type PriceSet map[string]struct{}

// NewPriceSet collects the prices of levels.
func NewPriceSet(levels []PriceLevel) PriceSet {
	set := make(PriceSet, len(levels))
	for _, l := range levels {
		set[priceKey(l.Price)] = struct{}{}
	}
	return set
}

// Has reports whether price is in the set.
func (s PriceSet) Has(price decimal.Decimal) bool {
	_, ok := s[priceKey(price)]
	return ok
}

// priceKey makes 100, 100.0 and 100.00 the same level.
func priceKey(price decimal.Decimal) string {
	return price.String()
}

// Normalize returns levels sorted best-first for side, with one level per price
// (the last occurrence wins) and without empty levels.
func Normalize(side Side, levels []PriceLevel) []PriceLevel {
	byPrice := make(map[string]PriceLevel, len(levels))
	for _, l := range levels {
		byPrice[priceKey(l.Price)] = l
	}
	return collect(side, byPrice)
}

func collect(side Side, byPrice map[string]PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(byPrice))
	for _, l := range byPrice {
		if l.Size.IsPositive() {
			out = append(out, l)
		}
	}
	sortLevels(side, out)
	return out
}

// upsert applies changes to levels: positive sizes replace, zero sizes remove.
func upsert(side Side, levels, changes []PriceLevel) []PriceLevel {
	byPrice := make(map[string]PriceLevel, len(levels)+len(changes))
	for _, l := range levels {
		byPrice[priceKey(l.Price)] = l
	}
	for _, c := range changes {
		if c.Size.IsZero() {
			delete(byPrice, priceKey(c.Price))
			continue
		}
		byPrice[priceKey(c.Price)] = c
	}
	return collect(side, byPrice)
}

// BuildBook turns a full snapshot into a valid book. Every level of a full snapshot is
// equally fresh, so crossing levels are dropped from both sides.
func BuildBook(bids, asks []PriceLevel) (Book, []CrossedLevel) {
	return Uncross(Normalize(SideBid, bids), Normalize(SideAsk, asks), NewPriceSet(bids), NewPriceSet(asks))
}

// ApplyDelta merges delta into current and repairs any cross it introduces.
func ApplyDelta(current *Snapshot, delta Update) (Book, []CrossedLevel) {
	bids := upsert(SideBid, current.Bids, delta.Bids)
	asks := upsert(SideAsk, current.Asks, delta.Asks)
	return Uncross(bids, asks, NewPriceSet(delta.Bids), NewPriceSet(delta.Asks))
}

// Uncross removes levels until the best bid is strictly below the best ask.
// The newest information wins: when only one of the two crossing levels is in the
// fresh set of its side, the other one is dropped. When both or neither are fresh,
// both are dropped. bids and asks must already be sorted best-first.
func Uncross(bids, asks []PriceLevel, freshBids, freshAsks PriceSet) (Book, []CrossedLevel) {
	var dropped []CrossedLevel

	for len(bids) > 0 && len(asks) > 0 && bids[0].Price.GreaterThanOrEqual(asks[0].Price) {
		bidFresh := freshBids.Has(bids[0].Price)
		askFresh := freshAsks.Has(asks[0].Price)

		switch {
		case askFresh && !bidFresh:
			dropped = append(dropped, CrossedLevel{Side: SideBid, Level: bids[0]})
			bids = bids[1:]
		case bidFresh && !askFresh:
			dropped = append(dropped, CrossedLevel{Side: SideAsk, Level: asks[0]})
			asks = asks[1:]
		default:
			dropped = append(dropped,
				CrossedLevel{Side: SideBid, Level: bids[0]},
				CrossedLevel{Side: SideAsk, Level: asks[0]},
			)
			bids = bids[1:]
			asks = asks[1:]
		}
	}

	return Book{Bids: bids, Asks: asks}, dropped
}

// Truncate keeps at most depth levels. A depth of zero or less keeps everything.
func Truncate(levels []PriceLevel, depth int) []PriceLevel {
	if depth <= 0 || len(levels) <= depth {
		return levels
	}
	return levels[:depth]
}
