// Package main provides the CLI entry point for the Lattice model service.
//
// The model service fronts LLM vendors behind one chat contract: it
// resolves model names against the explicit model registry and the
// configured provider adapters, manages versioned system prompts, and
// serves unary and streaming inference.
//
// # Basic Usage
//
// Start the service:
//
//	lattice-models serve
//
// # Environment Variables
//
//   - MODELS_PORT: gRPC listener port (default: 50053)
//   - OPENAI_API_KEY: OpenAI API key (enables the openai adapter)
//   - OPENAI_BASE_URL: optional OpenAI-compatible endpoint override
//   - ANTHROPIC_API_KEY: Anthropic API key (enables the anthropic adapter)
//   - LOG_LEVEL: debug, info, warn, or error (default: info)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP collector for traces (optional)
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
	"github.com/haasonsaas/lattice/internal/models"
	"github.com/haasonsaas/lattice/internal/models/providers"
	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/pkg/api"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "lattice-models",
		Short:        "Lattice model service",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the model service",
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
	cfg, err := config.ModelsFromEnv()
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
	tracer, stopTracer := observability.NewTracer("lattice-models", cfg.Tracing)

	// Adapter order is fixed: openai first, then anthropic. Unregistered
	// model names are scanned against adapters in this order.
	var adapters []providers.Provider
	if cfg.OpenAI.Configured() {
		adapters = append(adapters, providers.NewOpenAI(cfg.OpenAI))
	}
	if cfg.Anthropic.Configured() {
		adapters = append(adapters, providers.NewAnthropic(cfg.Anthropic))
	}
	if len(adapters) == 0 {
		logger.Warn("no provider adapters configured; chat requests will fail until models are registered")
	}

	modelRegistry := models.NewModelRegistry()
	svc := models.NewService(
		models.NewResolver(modelRegistry, adapters),
		modelRegistry,
		models.NewPromptRegistry(),
		metrics,
		tracer,
		logger,
	)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(logger)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(logger)),
		grpc.NumStreamWorkers(uint32(cfg.Server.Workers)),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.Workers)*4),
	)
	api.RegisterModelServiceServer(server, svc)
	healthpb.RegisterHealthServer(server, health.NewServer())

	lis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("models listen: %w", err)
	}

	shutdown := infra.NewShutdownCoordinator(30*time.Second, logger)
	shutdown.Register("grpc", infra.PhaseServers, func(context.Context) error {
		server.GracefulStop()
		return nil
	})
	shutdown.Register("tracer", infra.PhaseCleanup, stopTracer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting model service", "addr", cfg.Server.Addr(), "adapters", len(adapters))
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
