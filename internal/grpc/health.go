// Package grpc runs the admin gRPC server that reports storefront health.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name reported through grpc.health.v1 next to the
// server wide "" entry.
const ServiceName = "emart.Storefront"

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthServer struct {
	server *grpc.Server
	health *health.Server
	checks map[string]Pinger
	log    zerolog.Logger
}

// NewHealthServer starts out NOT_SERVING until the first successful probe.
func NewHealthServer(checks map[string]Pinger, log zerolog.Logger) *HealthServer {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(srv)

	s := &HealthServer{
		server: srv,
		health: hs,
		checks: checks,
		log:    log.With().Str("component", "grpc").Logger(),
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("grpc health server listening")
	return s.server.Serve(lis)
}

// Probe pings every dependency once and updates the reported status.
func (s *HealthServer) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Str("dependency", name).Msg("health probe failed")
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Watch probes on every tick until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	s.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown reports NOT_SERVING permanently and stops the server.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *HealthServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
