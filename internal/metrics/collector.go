package metrics

import (
	"net/http"
	"time"

	aggregatorv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/aggregator/v1"
	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderbook_aggregator"

// Collector records engine observations as prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	tickDuration prometheus.Histogram
	lastCycle    prometheus.Gauge
	updates      *prometheus.CounterVec
	failures     *prometheus.CounterVec
	degraded     *prometheus.GaugeVec
}

var _ aggregatorv1.Monitor = (*Collector)(nil)

// NewCollector creates a collector with go and process collectors registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent refreshing every symbol once.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle",
			Help:      "Number of the last completed tick.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "book_updates_total",
			Help:      "Book updates applied, by symbol and kind.",
		}, []string{"symbol", "kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Failed symbol refreshes.",
		}, []string{"symbol"}),
		degraded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "symbol_degraded",
			Help:      "1 while the symbol is served from a stale snapshot.",
		}, []string{"symbol"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.tickDuration,
		c.lastCycle,
		c.updates,
		c.failures,
		c.degraded,
	)
	return c
}

func (c *Collector) ObserveTick(cycle uint64, elapsed time.Duration) {
	c.tickDuration.Observe(elapsed.Seconds())
	c.lastCycle.Set(float64(cycle))
}

func (c *Collector) ObserveUpdate(symbol string, kind bookv1.UpdateKind) {
	c.updates.WithLabelValues(symbol, string(kind)).Inc()
}

func (c *Collector) ObserveFailure(symbol string, _ int) {
	c.failures.WithLabelValues(symbol).Inc()
}

func (c *Collector) ObserveHealth(symbol string, degraded bool) {
	value := 0.0
	if degraded {
		value = 1
	}
	c.degraded.WithLabelValues(symbol).Set(value)
}

// Init sets the degraded gauge of every symbol to zero so it is exported before the first failure.
func (c *Collector) Init(symbols []string) {
	for _, s := range symbols {
		c.degraded.WithLabelValues(s).Set(0)
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
