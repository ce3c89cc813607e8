package engine

import (
	"time"

	aggregatorv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/aggregator/v1"
)

// Options represents configuration options for the Engine.
type Options struct {
	// TickInterval is the fixed refresh cadence.
	TickInterval time.Duration
	// FeedTimeout bounds one feed call. Zero means twice the tick interval.
	FeedTimeout time.Duration
	// DegradedThreshold is the number of consecutive failures after which a symbol is degraded.
	DegradedThreshold int
	// MaxConcurrency bounds the per-tick fan-out. Zero means one worker per symbol.
	MaxConcurrency int
	// Monitor receives tick, update, failure and health observations.
	Monitor aggregatorv1.Monitor
}

// DefaultEngineOptions returns the default engine options.
func DefaultEngineOptions() *Options {
	return &Options{
		TickInterval:      10 * time.Millisecond,
		DegradedThreshold: 3,
		Monitor:           aggregatorv1.NopMonitor{},
	}
}

func (o *Options) feedTimeout() time.Duration {
	if o.FeedTimeout > 0 {
		return o.FeedTimeout
	}
	return 2 * o.TickInterval
}

func (o *Options) degradedThreshold() int {
	if o.DegradedThreshold > 0 {
		return o.DegradedThreshold
	}
	return 3
}

func (o *Options) monitor() aggregatorv1.Monitor {
	if o.Monitor == nil {
		return aggregatorv1.NopMonitor{}
	}
	return o.Monitor
}
