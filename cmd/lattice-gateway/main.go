// Package main provides the CLI entry point for the Lattice gateway.
//
// The gateway is the platform's single entry point: a gRPC listener that
// forwards internal service calls by routing metadata, and an HTTP
// listener that routes external requests to registered workflow handlers.
//
// # Basic Usage
//
// Start the gateway:
//
//	lattice-gateway serve
//
// # Environment Variables
//
//   - GATEWAY_PORT: gRPC listener port (default: 50051)
//   - GATEWAY_HTTP_PORT: HTTP listener port (default: 8080)
//   - SESSIONS_SERVICE_ADDR: session service address (default: localhost:50052)
//   - MODELS_SERVICE_ADDR: model service address (default: localhost:50053)
//   - GATEWAY_WORKFLOWS: workflow routes as "path=addr,path=addr"
//   - LOG_LEVEL: debug, info, warn, or error (default: info)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP collector for traces (optional)
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/internal/gateway"
	"github.com/haasonsaas/lattice/internal/infra"
	"github.com/haasonsaas/lattice/internal/observability"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lattice-gateway",
		Short:        "Lattice platform gateway",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway listeners",
		Long: `Start both gateway listeners.

The gRPC listener accepts any method and forwards the call to the backend
named by the x-target-service metadata tag. The HTTP listener answers
external workflow requests against the registered route table. Graceful
shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Optional YAML config file overlaid on the environment")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	config.LoadEnvFile()
	cfg, err := config.GatewayFromEnv()
	if err != nil {
		return err
	}
	if configPath != "" {
		if err := config.FromFile(configPath, cfg); err != nil {
			return err
		}
	}
	logger := observability.NewLogger(cfg.Logging)
	metrics := observability.NewMetrics(nil)
	tracer, stopTracer := observability.NewTracer("lattice-gateway", cfg.Tracing)

	srv := gateway.NewServer(cfg, metrics, tracer, logger)

	shutdown := infra.NewShutdownCoordinator(30*time.Second, logger)
	shutdown.Register("gateway", infra.PhaseServers, func(ctx context.Context) error {
		srv.Stop(ctx)
		return nil
	})
	shutdown.Register("tracer", infra.PhaseCleanup, stopTracer)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

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
