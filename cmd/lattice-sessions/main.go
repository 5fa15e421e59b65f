// Package main provides the CLI entry point for the Lattice session service.
//
// The session service owns conversational state: sessions and their
// message logs, plus scoped user memory. State lives in memory by default
// or in Postgres when configured.
//
// # Basic Usage
//
// Start with the in-memory backend:
//
//	lattice-sessions serve
//
// Start against Postgres:
//
//	SESSIONS_BACKEND=postgres \
//	SESSIONS_DATABASE_URL=postgres://localhost/lattice?sslmode=disable \
//	lattice-sessions serve
//
// # Environment Variables
//
//   - SESSIONS_PORT: gRPC listener port (default: 50052)
//   - SESSIONS_BACKEND: "memory" or "postgres" (default: memory)
//   - SESSIONS_DATABASE_URL: Postgres connection string (postgres backend)
//   - LOG_LEVEL: debug, info, warn, or error (default: info)
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/internal/infra"
	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/internal/sessions"
	"github.com/haasonsaas/lattice/pkg/api"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "lattice-sessions",
		Short:        "Lattice session service",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Optional YAML config file overlaid on the environment")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath string) error {
	config.LoadEnvFile()
	cfg, err := config.SessionsFromEnv()
	if err != nil {
		return err
	}
	if configPath != "" {
		if err := config.FromFile(configPath, cfg); err != nil {
			return err
		}
	}
	logger := observability.NewLogger(cfg.Logging)

	store, err := sessions.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("sessions store: %w", err)
	}
	svc := sessions.NewService(store, logger)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(logger)),
		grpc.NumStreamWorkers(uint32(cfg.Server.Workers)),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.Workers)*4),
	)
	api.RegisterSessionServiceServer(server, svc)
	healthpb.RegisterHealthServer(server, health.NewServer())

	lis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("sessions listen: %w", err)
	}

	shutdown := infra.NewShutdownCoordinator(30*time.Second, logger)
	shutdown.Register("grpc", infra.PhaseServers, func(context.Context) error {
		server.GracefulStop()
		return nil
	})
	shutdown.Register("store", infra.PhaseConnections, func(context.Context) error {
		return store.Close()
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting session service", "addr", cfg.Server.Addr(), "backend", cfg.Backend)
		errCh <- server.Serve(lis)
	}()

	done := make(chan struct{})
	go func() {
		shutdown.OnSignal()
		close(done)
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
		return nil
	}
}
