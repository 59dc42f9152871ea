package grpc_control

import (
	"context"
	"fmt"
	"net"
	"time"

	"signal-hub/src/interfaces"
	"signal-hub/src/logger"
	"signal-hub/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-checked service name; "" covers the whole process.
const ServiceName = "signalhub.RealtimeHub"

// HubStatus is the part of the hub the health service watches.
type HubStatus interface {
	Running() bool
}

// ErrorBudget reports when a component has failed too often to keep serving.
type ErrorBudget interface {
	Exhausted() bool
}

// -----------------------------------------------------------------------------

// HealthService serves grpc.health.v1 and mirrors hub and database health into it.
type HealthService struct {
	Config *models.MConfig
	Logger *logger.Logger

	hub     HubStatus
	db      interfaces.IDatabase
	budgets []ErrorBudget
	health  *health.Server
	server  *grpc.Server
}

// -----------------------------------------------------------------------------

// NewHealthService creates the service. db may be nil.
func NewHealthService(cfg *models.MConfig, log *logger.Logger, hub HubStatus, db interfaces.IDatabase) *HealthService {
	s := &HealthService{
		Config: cfg,
		Logger: log,
		hub:    hub,
		db:     db,
		health: health.NewServer(),
		server: grpc.NewServer(),
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.Refresh()
	return s
}

// -----------------------------------------------------------------------------

// Track adds error budgets; any exhausted budget reports NOT_SERVING.
func (s *HealthService) Track(budgets ...ErrorBudget) {
	s.budgets = append(s.budgets, budgets...)
}

// -----------------------------------------------------------------------------

// Refresh recomputes the serving status.
func (s *HealthService) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if !s.hub.Running() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	} else if s.db != nil {
		if err := s.db.Ping(); err != nil {
			s.Logger.Warning("Health: database ping failed: %v", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	for _, b := range s.budgets {
		if b.Exhausted() {
			s.Logger.Warning("Health: error budget exhausted")
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// -----------------------------------------------------------------------------

// Watch refreshes the status every interval until ctx is done.
func (s *HealthService) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

// -----------------------------------------------------------------------------

// Serve blocks serving gRPC on lis.
func (s *HealthService) Serve(lis net.Listener) error {
	s.Logger.Info("gRPC health service listening on %s", lis.Addr())
	return s.server.Serve(lis)
}

// -----------------------------------------------------------------------------

// Start listens on the configured gRPC address.
func (s *HealthService) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// -----------------------------------------------------------------------------

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *HealthService) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
