package aggregatorv1

import (
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
)

// Reader is the read side of the aggregation engine used by transports.
type Reader interface {
	Get(symbol string) (*bookv1.Snapshot, error)
	Symbols() []string
	Health() []SymbolHealth
	Cycle() uint64
}

// Monitor receives engine observations. Implementations must be safe for concurrent use.
type Monitor interface {
	ObserveTick(cycle uint64, elapsed time.Duration)
	ObserveUpdate(symbol string, kind bookv1.UpdateKind)
	ObserveFailure(symbol string, consecutive int)
	ObserveHealth(symbol string, degraded bool)
}
