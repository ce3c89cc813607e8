package aggregatorv1

import (
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
)

// SymbolHealth is the refresh status of one symbol.
type SymbolHealth struct {
	Symbol              string    `json:"symbol"`
	Degraded            bool      `json:"degraded"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	LastSuccessAt       time.Time `json:"lastSuccessAt"`
	LastUpdateCycle     uint64    `json:"lastUpdateCycle"`
}

// NopMonitor discards every observation.
type NopMonitor struct{}

func (NopMonitor) ObserveTick(uint64, time.Duration)       {}
func (NopMonitor) ObserveUpdate(string, bookv1.UpdateKind) {}
func (NopMonitor) ObserveFailure(string, int)              {}
func (NopMonitor) ObserveHealth(string, bool)              {}

// Monitors fans every observation out to each monitor in order.
type Monitors []Monitor

func (m Monitors) ObserveTick(cycle uint64, elapsed time.Duration) {
	for _, mon := range m {
		mon.ObserveTick(cycle, elapsed)
	}
}

func (m Monitors) ObserveUpdate(symbol string, kind bookv1.UpdateKind) {
	for _, mon := range m {
		mon.ObserveUpdate(symbol, kind)
	}
}

func (m Monitors) ObserveFailure(symbol string, consecutive int) {
	for _, mon := range m {
		mon.ObserveFailure(symbol, consecutive)
	}
}

func (m Monitors) ObserveHealth(symbol string, degraded bool) {
	for _, mon := range m {
		mon.ObserveHealth(symbol, degraded)
	}
}
