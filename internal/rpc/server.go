package rpc

import (
	"fmt"
	"net"

	"github.com/muhammadchandra19/orderbook-aggregator/pkg/grpclib/health"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// GrpcServer is the gRPC server carrying the health service.
type GrpcServer struct {
	Server *grpc.Server
	Health *health.Server
	logger logger.Interface
}

// NewGrpcServer creates the gRPC server. Reflection is only enabled in development.
func NewGrpcServer(environment string, healthServer *health.Server, logger logger.Interface) *GrpcServer {
	server := &GrpcServer{
		Server: grpc.NewServer(),
		Health: healthServer,
		logger: logger,
	}

	healthServer.Register(server.Server)

	if environment == "development" {
		reflection.Register(server.Server)
	}

	return server
}

// Serve listens on port and blocks until the server stops.
func (s *GrpcServer) Serve(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}

	s.logger.Info("gRPC server listening", logger.Field{
		Key:   "port",
		Value: port,
	})
	return s.Server.Serve(lis)
}

// Stop marks every service NOT_SERVING and stops the server gracefully.
func (s *GrpcServer) Stop() {
	s.Health.Shutdown()
	s.Server.GracefulStop()
}
