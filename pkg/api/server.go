package api

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultHealthSyncInterval is how often component health is copied into
// the gRPC health service
const DefaultHealthSyncInterval = 5 * time.Second

// healthServices are reported individually; "" is the overall readiness
var healthServices = []string{metrics.ComponentStore, metrics.ComponentBus, metrics.ComponentGateway}

// GRPCServer exposes the standard gRPC health service for orchestrators
// that probe over gRPC.
type GRPCServer struct {
	grpc     *grpc.Server
	health   *health.Server
	interval time.Duration
	stopCh   chan struct{}
	once     sync.Once
	log      zerolog.Logger
}

// NewGRPCServer creates the gRPC server
func NewGRPCServer(syncInterval time.Duration) *GRPCServer {
	if syncInterval <= 0 {
		syncInterval = DefaultHealthSyncInterval
	}

	s := &GRPCServer{
		grpc: grpc.NewServer(
			grpc.ChainUnaryInterceptor(RecoveryInterceptor(), LoggingInterceptor()),
		),
		health:   health.NewServer(),
		interval: syncInterval,
		stopCh:   make(chan struct{}),
		log:      log.WithComponent("grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SyncHealth()
	return s
}

// Start listens on addr and serves until Stop
func (s *GRPCServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on lis until Stop
func (s *GRPCServer) Serve(lis net.Listener) error {
	go s.syncLoop()
	s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return s.grpc.Serve(lis)
}

// SyncHealth copies the current component health into the health service
func (s *GRPCServer) SyncHealth() {
	for _, name := range healthServices {
		s.health.SetServingStatus(name, servingStatus(metrics.ComponentHealthy(name)))
	}
	s.health.SetServingStatus("", servingStatus(metrics.GetReadiness().Status == "ready"))
}

// Stop gracefully stops the gRPC server
func (s *GRPCServer) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}

func (s *GRPCServer) syncLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SyncHealth()
		case <-s.stopCh:
			return
		}
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
