package feedv1

import (
	"encoding/json"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/shopspring/decimal"
)

// BookEvent is the wire form of a book update on kafka topics and redis keys.
// Levels are [price, size] pairs of decimal strings.
type BookEvent struct {
	ID        string               `json:"id,omitempty"`
	Symbol    string               `json:"symbol"`
	Type      bookv1.UpdateKind    `json:"type"`
	Bids      [][2]decimal.Decimal `json:"bids"`
	Asks      [][2]decimal.Decimal `json:"asks"`
	Timestamp time.Time            `json:"ts"`
}

// NewBookEvent converts an update into its wire form.
func NewBookEvent(id string, update bookv1.Update) BookEvent {
	return BookEvent{
		ID:        id,
		Symbol:    update.Symbol,
		Type:      update.Kind,
		Bids:      toPairs(update.Bids),
		Asks:      toPairs(update.Asks),
		Timestamp: update.EventTime,
	}
}

// DecodeBookEvent parses a JSON payload into an update with a normalized symbol.
func DecodeBookEvent(payload []byte) (bookv1.Update, error) {
	var event BookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return bookv1.Update{}, errors.NewTracer(string(errors.FeedDecodeError)).Wrap(err)
	}
	if event.Symbol == "" {
		return bookv1.Update{}, errors.NewErrorDetails("book event without symbol", string(errors.FeedDecodeError), "symbol")
	}
	return event.Update(), nil
}

// Update converts e into a domain update.
func (e BookEvent) Update() bookv1.Update {
	return bookv1.Update{
		Symbol:    bookv1.NormalizeSymbol(e.Symbol),
		Kind:      e.Type,
		Bids:      fromPairs(e.Bids),
		Asks:      fromPairs(e.Asks),
		EventTime: e.Timestamp,
	}
}

func toPairs(levels []bookv1.PriceLevel) [][2]decimal.Decimal {
	pairs := make([][2]decimal.Decimal, 0, len(levels))
	for _, l := range levels {
		pairs = append(pairs, [2]decimal.Decimal{l.Price, l.Size})
	}
	return pairs
}

func fromPairs(pairs [][2]decimal.Decimal) []bookv1.PriceLevel {
	levels := make([]bookv1.PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		levels = append(levels, bookv1.PriceLevel{Price: p[0], Size: p[1]})
	}
	return levels
}
