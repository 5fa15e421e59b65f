// Package infra holds process-level plumbing shared by the platform
// binaries: phased graceful shutdown and bounded parallel processing.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownPhase orders teardown. Earlier phases complete before later
// ones start.
type ShutdownPhase int

const (
	// PhaseServers drains listeners so no new work is accepted.
	PhaseServers ShutdownPhase = iota
	// PhaseConnections closes external connections (databases, vendor APIs).
	PhaseConnections
	// PhaseCleanup runs last (flushing logs, scratch state).
	PhaseCleanup
	phaseCount
)

func (p ShutdownPhase) String() string {
	switch p {
	case PhaseServers:
		return "servers"
	case PhaseConnections:
		return "connections"
	case PhaseCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("phase-%d", p)
	}
}

// ShutdownFunc tears one component down. The context is cancelled if the
// handler overruns its timeout.
type ShutdownFunc func(ctx context.Context) error

type shutdownHandler struct {
	name    string
	phase   ShutdownPhase
	fn      ShutdownFunc
	timeout time.Duration
}

// ShutdownCoordinator runs registered handlers phase by phase when the
// process stops. Handlers within a phase run concurrently. Each binary
// builds its own coordinator; there is no process-wide instance.
type ShutdownCoordinator struct {
	mu             sync.Mutex
	handlers       [phaseCount][]shutdownHandler
	defaultTimeout time.Duration
	logger         *slog.Logger
	once           sync.Once
}

// NewShutdownCoordinator creates a coordinator with a default per-handler
// timeout.
func NewShutdownCoordinator(defaultTimeout time.Duration, logger *slog.Logger) *ShutdownCoordinator {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShutdownCoordinator{defaultTimeout: defaultTimeout, logger: logger}
}

// Register adds a handler to a phase.
func (c *ShutdownCoordinator) Register(name string, phase ShutdownPhase, fn ShutdownFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if phase < 0 || phase >= phaseCount {
		phase = PhaseCleanup
	}
	c.handlers[phase] = append(c.handlers[phase], shutdownHandler{name: name, phase: phase, fn: fn})
}

// OnSignal blocks until SIGINT or SIGTERM arrives, then runs the
// registered handlers. It returns once shutdown finishes.
func (c *ShutdownCoordinator) OnSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	c.logger.Info("received shutdown signal", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), c.defaultTimeout)
	defer cancel()
	c.Shutdown(ctx)
}

// Shutdown runs every handler once, in phase order. Errors are logged,
// never fatal; a stuck handler forfeits its timeout, not the process.
func (c *ShutdownCoordinator) Shutdown(ctx context.Context) {
	c.once.Do(func() {
		start := time.Now()
		for phase := ShutdownPhase(0); phase < phaseCount; phase++ {
			c.mu.Lock()
			handlers := c.handlers[phase]
			c.mu.Unlock()
			if len(handlers) == 0 {
				continue
			}

			c.logger.Debug("shutdown phase", "phase", phase.String(), "handlers", len(handlers))
			c.runPhase(ctx, handlers)

			if ctx.Err() != nil {
				c.logger.Warn("shutdown deadline exceeded", "phase", phase.String())
				return
			}
		}
		c.logger.Info("shutdown complete", "duration", time.Since(start))
	})
}

func (c *ShutdownCoordinator) runPhase(ctx context.Context, handlers []shutdownHandler) {
	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h shutdownHandler) {
			defer wg.Done()
			c.runHandler(ctx, h)
		}(h)
	}
	wg.Wait()
}

func (c *ShutdownCoordinator) runHandler(ctx context.Context, h shutdownHandler) {
	timeout := h.timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.fn(handlerCtx) }()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Warn("shutdown handler failed", "handler", h.name, "phase", h.phase.String(), "error", err)
		}
	case <-handlerCtx.Done():
		c.logger.Warn("shutdown handler timed out", "handler", h.name, "phase", h.phase.String(), "timeout", timeout)
	}
}
