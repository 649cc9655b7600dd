// Package grpc exposes the standard gRPC health service for the scraper session.
package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/transport"
	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// SessionService is the health service name that tracks the challenge token.
const SessionService = "opensubtitles.v1.Session"

var (
	grpcServerMetrics         *grpcprom.ServerMetrics
	registerServerMetricsOnce sync.Once
)

// StatusSource reports the transport session state.
type StatusSource interface {
	Status() transport.Status
}

// Server is a gRPC server whose health follows the scraper session.
type Server struct {
	*grpc.Server
	health *health.Server
	source StatusSource
}

// NewGRPCServer creates a gRPC server with Prometheus metrics, health checking
// and reflection. The session service starts in the state reported by src.
func NewGRPCServer(src StatusSource) *Server {
	registerServerMetricsOnce.Do(func() {
		grpcServerMetrics = grpcprom.NewServerMetrics(
			grpcprom.WithServerHandlingTimeHistogram(),
		)
		prometheus.MustRegister(grpcServerMetrics)
	})

	srvMetrics := grpcServerMetrics

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(srvMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(srvMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// Register reflection service for tools like grpcurl
	reflection.Register(grpcServer)

	srvMetrics.InitializeMetrics(grpcServer)

	s := &Server{Server: grpcServer, health: healthServer, source: src}
	s.UpdateHealth()
	return s
}

// UpdateHealth sets the session service to SERVING while the challenge token is valid.
func (s *Server) UpdateHealth() grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if s.source.Status().ChallengeValid {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(SessionService, status)
	return status
}

// Watch refreshes the session health every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := s.UpdateHealth()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if status := s.UpdateHealth(); status != last {
				logger := config.GetLogger()
				logger.Info().Str("status", status.String()).Msg("Session health changed")
				last = status
			}
		}
	}
}

// Shutdown marks every service NOT_SERVING and stops the server gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}
