package snapshotv1

import (
	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
)

// Store holds the latest consolidated snapshot of every registered symbol.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=snapshotv1_mock
type Store interface {
	// Register creates an empty snapshot for symbol. It returns false if symbol is already known.
	Register(symbol string) bool
	// Get returns a copy of the current snapshot, or an unknown symbol error.
	Get(symbol string) (*bookv1.Snapshot, error)
	// Put replaces the snapshot of symbol with the full book in snapshot.
	Put(symbol string, snapshot bookv1.Snapshot) error
	// Merge applies an incremental update to the snapshot of symbol.
	Merge(symbol string, delta bookv1.Update) error
	// Symbols lists registered symbols in registration order.
	Symbols() []string
}
