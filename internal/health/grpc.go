package health

import (
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the standard gRPC health service
type GRPCServer struct {
	address string
	server  *grpc.Server
	health  *health.Server
	service string
	logger  *logrus.Logger
}

// NewGRPCServer creates a gRPC server with health checking registered for
// both the overall server and serviceName
func NewGRPCServer(address, serviceName string, logger *logrus.Logger) *GRPCServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)

	g := &GRPCServer{
		address: address,
		server:  srv,
		health:  hs,
		service: serviceName,
		logger:  logger,
	}
	g.SetServing(false)
	return g
}

// SetServing flips the reported status
func (g *GRPCServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(g.service, status)
}

// Serve listens on the configured address until ctx is cancelled
func (g *GRPCServer) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.address, err)
	}
	return g.ServeListener(ctx, lis)
}

// ServeListener serves on an existing listener until ctx is cancelled
func (g *GRPCServer) ServeListener(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		g.health.Shutdown()
		g.server.GracefulStop()
	}()

	if g.logger != nil {
		g.logger.WithField("address", lis.Addr().String()).Info("gRPC health server starting")
	}
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
