package bookv1

import "sort"

// Levels is a slice of price levels on one side of a book.
type Levels []PriceLevel

// ByBestAsk sorts Levels by the best ask price (lowest price).
type ByBestAsk struct {
	Levels
}

func (a ByBestAsk) Len() int {
	return len(a.Levels)
}

func (a ByBestAsk) Less(i, j int) bool {
	return a.Levels[i].Price.LessThan(a.Levels[j].Price)
}

func (a ByBestAsk) Swap(i, j int) {
	a.Levels[i], a.Levels[j] = a.Levels[j], a.Levels[i]
}

// ByBestBid sorts Levels by the best bid price (highest price).
type ByBestBid struct {
	Levels
}

func (a ByBestBid) Len() int {
	return len(a.Levels)
}

func (a ByBestBid) Less(i, j int) bool {
	return a.Levels[i].Price.GreaterThan(a.Levels[j].Price)
}

func (a ByBestBid) Swap(i, j int) {
	a.Levels[i], a.Levels[j] = a.Levels[j], a.Levels[i]
}

func sortLevels(side Side, levels []PriceLevel) {
	if side == SideBid {
		sort.Sort(ByBestBid{levels})
		return
	}
	sort.Sort(ByBestAsk{levels})
}
