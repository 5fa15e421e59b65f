// Package gateway runs the platform's unified entry point: a gRPC
// listener that forwards internal calls to backend services by routing
// metadata, and an HTTP listener that routes external requests to
// registered workflow handlers. Both consult the same registry.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/internal/infra"
	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/internal/registry"
)

// Server is the gateway process: one gRPC proxy listener and one HTTP
// workflow router sharing a registry.
type Server struct {
	config   *config.GatewayConfig
	registry *registry.Registry
	grpc     *grpc.Server
	http     *http.Server
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   *slog.Logger
}

// NewServer creates a gateway server. Platform services from the
// configuration are pre-registered; the proxy itself registers no gRPC
// services, so every inbound call reaches the unknown-service handler.
func NewServer(cfg *config.GatewayConfig, metrics *observability.Metrics, tracer *observability.Tracer, logger *slog.Logger) *Server {
	reg := registry.New()
	reg.RegisterService("sessions", cfg.SessionsAddr)
	reg.RegisterService("models", cfg.ModelsAddr)
	for path, addr := range cfg.Workflows {
		reg.RegisterWorkflow(path, addr)
	}

	s := &Server{
		config:   cfg,
		registry: reg,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}

	s.grpc = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(s.handleProxy),
		grpc.ChainStreamInterceptor(streamLoggingInterceptor(logger)),
		grpc.NumStreamWorkers(uint32(cfg.Server.Workers)),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.Workers)*4),
	)

	return s
}

// Registry exposes the gateway's directory, used by tests and by the HTTP
// handler.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start begins serving on both listeners and blocks until the gRPC
// listener stops.
func (s *Server) Start(ctx context.Context) error {
	s.probeBackends(ctx)
	if err := s.startHTTP(); err != nil {
		return err
	}

	addr := s.config.Server.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	s.logger.Info("starting gateway grpc listener",
		"addr", addr,
		"services", s.registry.Services(),
	)
	return s.grpc.Serve(lis)
}

// probeBackends checks TCP reachability of every registered service
// concurrently. Unreachable backends are logged, not fatal; they may come
// up after the gateway does.
func (s *Server) probeBackends(ctx context.Context) {
	names := s.registry.Services()
	_, errs := infra.ParallelProcess(ctx, names, 4, func(_ context.Context, name string) (struct{}, error) {
		addr, err := s.registry.ResolveService(name)
		if err != nil {
			return struct{}{}, err
		}
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			return struct{}{}, fmt.Errorf("%s at %s: %w", name, addr, err)
		}
		return struct{}{}, conn.Close()
	})
	for _, err := range errs {
		if err != nil {
			s.logger.Warn("backend unreachable at startup", "error", err)
		}
	}
}

func (s *Server) startHTTP() error {
	if s.config.HTTPPort == 0 {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.httpMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway http listen: %w", err)
	}
	s.http = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("starting gateway http listener", "addr", addr)
	return nil
}

// Stop gracefully shuts down both listeners.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("stopping gateway")
	s.grpc.GracefulStop()

	if s.http != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown error", "error", err)
		}
		s.http = nil
	}
}

// streamLoggingInterceptor logs every call passing through the proxy
// listener. Unknown-service calls arrive here as streams regardless of
// their unary/streaming nature.
func streamLoggingInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		logger.Debug("proxy call started", "method", info.FullMethod)
		err := handler(srv, ss)
		if err != nil {
			logger.Error("proxy call failed", "method", info.FullMethod, "error", err)
		}
		return err
	}
}
