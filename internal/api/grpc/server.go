package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"melange-connection-backend/internal/api/grpc/interceptor"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/security"
)

// ServiceName is the health-checked name of the connection backend.
const ServiceName = "melange.connections"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is the operations gRPC endpoint: standard health checking and reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	db     Pinger
}

func NewServer(tokens security.TokenManager, db Pinger) *Server {
	auth := interceptor.NewAuthInterceptor(tokens)
	s := grpc.NewServer(
		grpc.UnaryInterceptor(auth.Unary()),
		grpc.StreamInterceptor(auth.Stream()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return &Server{grpc: s, health: hs, db: db}
}

func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// CheckDatabase sets the serving status from a single database ping.
func (s *Server) CheckDatabase(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.PingContext(ctx); err != nil {
		logger.Warn("Database health check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// WatchDatabase re-checks the database every interval until ctx is done.
func (s *Server) WatchDatabase(ctx context.Context, interval time.Duration) {
	s.CheckDatabase(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckDatabase(ctx)
		}
	}
}

// Stop marks every service as not serving and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
