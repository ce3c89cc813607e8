package rpc

import (
	aggregatorv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/aggregator/v1"
	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/grpclib/health"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
)

// ServicePrefix prefixes the per-symbol gRPC health service names, e.g. "orderbook.BTC/USDT".
const ServicePrefix = "orderbook."

// ServiceName returns the gRPC health service name of symbol.
func ServiceName(symbol string) string {
	return ServicePrefix + bookv1.NormalizeSymbol(symbol)
}

// HealthMonitor mirrors symbol health into the gRPC health server.
// Degraded symbols are NOT_SERVING.
type HealthMonitor struct {
	aggregatorv1.NopMonitor

	server *health.Server
	logger logger.Interface
}

var _ aggregatorv1.Monitor = (*HealthMonitor)(nil)

// NewHealthMonitor marks the overall service and every symbol as SERVING.
func NewHealthMonitor(server *health.Server, symbols []string, logger logger.Interface) *HealthMonitor {
	server.InitService("")
	for _, s := range symbols {
		server.InitService(ServiceName(s))
	}
	return &HealthMonitor{server: server, logger: logger}
}

func (m *HealthMonitor) ObserveHealth(symbol string, degraded bool) {
	m.server.SetServing(ServiceName(symbol), !degraded)
	m.logger.Debug("gRPC health status changed", logger.Field{
		Key:   "service",
		Value: ServiceName(symbol),
	}, logger.Field{
		Key:   "serving",
		Value: !degraded,
	})
}
