package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/muhammadchandra19/orderbook-aggregator/pkg/grpclib/health"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServiceName(t *testing.T) {
	assert.Equal(t, "orderbook.BTC/USDT", ServiceName("btc-usdt"))
}

func TestHealthMonitor_ObserveHealth(t *testing.T) {
	ctx := context.Background()
	server := health.NewServer()
	monitor := NewHealthMonitor(server, []string{"BTC/USDT", "ETH/USDT"}, logger.NewNopLogger())

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, server.Status(ctx, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, server.Status(ctx, ServiceName("ETH/USDT")))

	monitor.ObserveHealth("ETH/USDT", true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, server.Status(ctx, ServiceName("ETH/USDT")))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, server.Status(ctx, ServiceName("BTC/USDT")))

	monitor.ObserveHealth("ETH/USDT", false)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, server.Status(ctx, ServiceName("ETH/USDT")))
}

func TestGrpcServer_HealthCheck(t *testing.T) {
	healthServer := health.NewServer()
	monitor := NewHealthMonitor(healthServer, []string{"BTC/USDT"}, logger.NewNopLogger())
	server := NewGrpcServer("development", healthServer, logger.NewNopLogger())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Server.Serve(lis) }()
	defer server.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	monitor.ObserveHealth("BTC/USDT", true)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName("BTC/USDT")})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	_, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "orderbook.XRP/USDT"})
	assert.Error(t, err)
}
