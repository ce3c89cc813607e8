package engine

import (
	"sync"
	"time"

	aggregatorv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/aggregator/v1"
)

type symbolHealth struct {
	failures        int
	degraded        bool
	lastError       string
	lastSuccessAt   time.Time
	lastUpdateCycle uint64
}

// healthTracker counts consecutive refresh failures per symbol.
type healthTracker struct {
	mu      sync.RWMutex
	symbols map[string]*symbolHealth
}

func newHealthTracker(symbols []string) *healthTracker {
	h := &healthTracker{symbols: make(map[string]*symbolHealth, len(symbols))}
	for _, s := range symbols {
		h.symbols[s] = &symbolHealth{}
	}
	return h
}

// failure records err for symbol. becameDegraded is true only on the call that
// crosses threshold.
func (h *healthTracker) failure(symbol string, err error, threshold int) (failures int, becameDegraded bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.symbols[symbol]
	s.failures++
	s.lastError = err.Error()
	if !s.degraded && s.failures >= threshold {
		s.degraded = true
		becameDegraded = true
	}
	return s.failures, becameDegraded
}

// success resets the failure count and reports whether symbol was degraded.
func (h *healthTracker) success(symbol string, cycle uint64, updated bool, at time.Time) (recovered bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.symbols[symbol]
	recovered = s.degraded
	s.failures = 0
	s.degraded = false
	s.lastError = ""
	s.lastSuccessAt = at
	if updated {
		s.lastUpdateCycle = cycle
	}
	return recovered
}

func (h *healthTracker) snapshot(order []string) []aggregatorv1.SymbolHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]aggregatorv1.SymbolHealth, 0, len(order))
	for _, symbol := range order {
		s := h.symbols[symbol]
		out = append(out, aggregatorv1.SymbolHealth{
			Symbol:              symbol,
			Degraded:            s.degraded,
			ConsecutiveFailures: s.failures,
			LastError:           s.lastError,
			LastSuccessAt:       s.lastSuccessAt,
			LastUpdateCycle:     s.lastUpdateCycle,
		})
	}
	return out
}
