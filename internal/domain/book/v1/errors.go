package bookv1

import (
	"fmt"

	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
)

// NewUnknownSymbolError is returned for symbols that were never registered.
func NewUnknownSymbolError(symbol string) error {
	return errors.NewErrorDetailsWithObject(
		fmt.Sprintf("unknown symbol %q", symbol),
		string(errors.UnknownSymbolError),
		"symbol",
		symbol,
	)
}

// IsUnknownSymbol reports whether err, or anything it wraps, is an unknown symbol error.
func IsUnknownSymbol(err error) bool {
	return errors.ErrorCodeEquals(err, string(errors.UnknownSymbolError))
}

// NewInvalidUpdateError describes an update that violates book constraints.
func NewInvalidUpdateError(message, field string, object any) error {
	return errors.NewErrorDetailsWithObject(message, string(errors.InvalidBookUpdateError), field, object)
}

// ValidateLevels checks that every price is positive and no size is negative.
func ValidateLevels(side Side, levels []PriceLevel) error {
	for i, l := range levels {
		if !l.Price.IsPositive() {
			return NewInvalidUpdateError("price must be positive", fmt.Sprintf("%ss[%d].price", side, i), l)
		}
		if l.Size.IsNegative() {
			return NewInvalidUpdateError("size must not be negative", fmt.Sprintf("%ss[%d].size", side, i), l)
		}
	}
	return nil
}

// Validate checks the kind and both sides of u.
func (u Update) Validate() error {
	if u.Kind != UpdateKindSnapshot && u.Kind != UpdateKindDelta {
		return NewInvalidUpdateError(fmt.Sprintf("unsupported update kind %q", u.Kind), "kind", u.Kind)
	}
	if err := ValidateLevels(SideBid, u.Bids); err != nil {
		return err
	}
	return ValidateLevels(SideAsk, u.Asks)
}
