package feedv1

import (
	"context"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
)

// Source provides the latest book update for a symbol.
// A nil update with a nil error means there is nothing new since the previous call.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=feedv1_mock
type Source interface {
	FetchUpdate(ctx context.Context, symbol string) (*bookv1.Update, error)
}

// Runner is implemented by sources that keep a background consumer alive.
type Runner interface {
	Start(ctx context.Context) error
	Close() error
}
