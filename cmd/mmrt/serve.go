package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/managemate/mmrt/pkg/api"
	"github.com/managemate/mmrt/pkg/auth"
	"github.com/managemate/mmrt/pkg/bus"
	"github.com/managemate/mmrt/pkg/config"
	"github.com/managemate/mmrt/pkg/conflict"
	"github.com/managemate/mmrt/pkg/digest"
	"github.com/managemate/mmrt/pkg/gateway"
	"github.com/managemate/mmrt/pkg/health"
	"github.com/managemate/mmrt/pkg/jobs"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/mailer"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/managemate/mmrt/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the realtime gateway, broker bridge and background jobs",
	Long: `Run the realtime gateway.

Serves the WebSocket endpoint at /ws, health and metrics over HTTP, and the
gRPC health service. The broker must be reachable at startup; later
outages are retried with backoff.

Examples:
  # Local development
  mmrt serve --redis-url redis://localhost:6379/0

  # Require a signed token on every connection
  MMRT_AUTH_JWT_SECRET=... mmrt serve --require-auth`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("http-addr", "", "HTTP listen address")
	serveCmd.Flags().String("grpc-addr", "", "gRPC health listen address (empty disables)")
	serveCmd.Flags().Bool("require-auth", false, "Reject connections without a valid token")
	serveCmd.Flags().Duration("conflict-interval", 0, "Conflict detection interval")
	serveCmd.Flags().Bool("no-digest", false, "Disable the critical notification email digest")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	metrics.SetVersion(Version)

	logger := log.WithComponent("serve")
	logger.Info().
		Str("version", Version).
		Str("http_addr", cfg.HTTPAddr).
		Str("grpc_addr", cfg.GRPCAddr).
		Str("data_dir", cfg.DataDir).
		Msg("Starting mmrt")

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	metrics.UpdateComponent(metrics.ComponentStore, true, "open")

	rdb, err := bus.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	authenticator, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}

	hub := gateway.NewHub(cfg.Gateway.SendBuffer)
	metrics.UpdateComponent(metrics.ComponentGateway, true, "accepting connections")

	bridge := bus.NewBridge(rdb, hub, cfg.BridgeConfig())
	connectCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	err = bridge.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}
	defer bridge.Close()

	publisher := bus.NewPublisher(rdb)

	scheduler, err := conflict.NewScheduler(
		conflict.NewDetector(store, publisher, cfg.Jobs.PageSize),
		cfg.Jobs.ConflictInterval,
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	logger.Info().Dur("interval", cfg.Jobs.ConflictInterval).Msg("Conflict detection scheduled")

	var digestJob *jobs.Runner
	if cfg.Jobs.DigestEnabled {
		m, err := newMailer(cfg)
		if err != nil {
			scheduler.Stop()
			return err
		}
		digestJob, err = digest.New(store, m).Job(cfg.Jobs.DigestInterval)
		if err != nil {
			scheduler.Stop()
			return err
		}
		digestJob.Start()
	}

	collector := metrics.NewCollector(hub, 15*time.Second)
	collector.Start()

	probes := health.NewMonitor(cfg.HealthSettings(), dependencyCheckers(cfg, store, rdb)...)
	probes.Start()

	httpServer := api.NewHTTPServer(cfg.HTTPAddr, gateway.NewServer(hub, authenticator, cfg.ServerConfig()), publisher, store)
	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var grpcServer *api.GRPCServer
	if cfg.GRPCAddr != "" {
		grpcServer = api.NewGRPCServer(0)
		go func() {
			if err := grpcServer.Start(cfg.GRPCAddr); err != nil {
				errCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Server failed, shutting down")
	}

	scheduler.Stop()
	if digestJob != nil {
		digestJob.Stop()
	}
	_ = bridge.Close()

	metrics.UpdateComponent(metrics.ComponentGateway, false, "shutting down")
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("HTTP server shutdown failed", err)
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}
	probes.Stop()
	collector.Stop()

	log.Info("Shutdown complete")
	return runErr
}

func newAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	if cfg.Auth.JWTSecret == "" {
		if cfg.Auth.Required {
			return nil, errors.New("--require-auth needs MMRT_AUTH_JWT_SECRET")
		}
		return auth.AllowAll{}, nil
	}
	return auth.NewJWTAuthenticator([]byte(cfg.Auth.JWTSecret), cfg.Auth.Required), nil
}

func dependencyCheckers(cfg *config.Config, store *storage.BoltStore, rdb *redis.Client) []health.Checker {
	checkers := []health.Checker{
		&health.FuncChecker{
			Name: metrics.ComponentStore,
			Fn:   func(context.Context) error { return store.Ping() },
		},
		health.NewRedisChecker(metrics.ComponentRedis, rdb),
	}
	if cfg.Jobs.DigestEnabled && cfg.SMTP.Enabled() {
		checkers = append(checkers, health.NewTCPChecker(metrics.ComponentSMTP, cfg.SMTP.Addr()))
	}
	return checkers
}

func newMailer(cfg *config.Config) (mailer.Mailer, error) {
	if !cfg.SMTP.Enabled() {
		log.Warn("SMTP not configured, digest emails will only be logged")
		return mailer.NewLogMailer(), nil
	}
	return mailer.NewSMTPMailer(cfg.SMTP)
}
