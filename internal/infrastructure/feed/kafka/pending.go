package kafka

import (
	"sync"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
)

// pending coalesces the events received between two drains of a symbol.
// A snapshot discards everything before it; deltas after a snapshot are folded into it,
// and consecutive deltas are combined with the latest change per price winning.
type pending struct {
	mu      sync.Mutex
	updates map[string]*bookv1.Update
}

func newPending() *pending {
	return &pending{updates: make(map[string]*bookv1.Update)}
}

func (p *pending) push(update bookv1.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.updates[update.Symbol]
	if !ok || update.Kind == bookv1.UpdateKindSnapshot {
		p.updates[update.Symbol] = &update
		return
	}

	current.EventTime = update.EventTime
	if current.Kind == bookv1.UpdateKindSnapshot {
		book, _ := bookv1.ApplyDelta(&bookv1.Snapshot{Bids: current.Bids, Asks: current.Asks}, update)
		current.Bids, current.Asks = book.Bids, book.Asks
		return
	}

	current.Bids = combine(current.Bids, update.Bids)
	current.Asks = combine(current.Asks, update.Asks)
}

// drain returns and clears the pending update for symbol, nil when there is none.
func (p *pending) drain(symbol string) *bookv1.Update {
	p.mu.Lock()
	defer p.mu.Unlock()

	update, ok := p.updates[symbol]
	if !ok {
		return nil
	}
	delete(p.updates, symbol)
	return update
}

func combine(earlier, later []bookv1.PriceLevel) []bookv1.PriceLevel {
	index := make(map[string]int, len(earlier)+len(later))
	out := make([]bookv1.PriceLevel, 0, len(earlier)+len(later))
	for _, l := range append(append([]bookv1.PriceLevel(nil), earlier...), later...) {
		key := l.Price.String()
		if i, ok := index[key]; ok {
			out[i] = l
			continue
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out
}
