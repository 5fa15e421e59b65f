// Package observability provides structured logging and Prometheus metrics
// for the platform services.
//
// Logging is built on Go's slog package:
//   - configurable level and encoding (JSON for production, text for dev)
//   - automatic request correlation from context
//   - redaction of provider API keys and other secrets before they reach
//     a log sink
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/haasonsaas/lattice/internal/config"
)

// ContextKey is the type for context keys carried into log records.
type ContextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey ContextKey = "request_id"

	// SessionIDKey is the context key for session IDs.
	SessionIDKey ContextKey = "session_id"

	// UserIDKey is the context key for user IDs.
	UserIDKey ContextKey = "user_id"

	// TargetServiceKey is the context key for the gateway routing target.
	TargetServiceKey ContextKey = "target_service"
)

var contextKeys = []ContextKey{RequestIDKey, SessionIDKey, UserIDKey, TargetServiceKey}

// redactPatterns covers the secrets this system actually handles: vendor
// API keys, bearer tokens, and connection-string passwords.
var redactPatterns = []string{
	`sk-ant-[a-zA-Z0-9_-]{16,}`,
	`sk-[a-zA-Z0-9]{20,}`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(password|passwd)=[^\s&@"']+`,
}

// NewLogger builds a slog.Logger for a service. Output defaults to stdout;
// all string attribute values pass through secret redaction.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redactAttr,
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(&contextHandler{handler})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var redactRegexps = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(redactPatterns))
	for _, p := range redactPatterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}()

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	a.Value = slog.StringValue(Redact(a.Value.String()))
	return a
}

// Redact masks secrets in s. Exposed so HTTP handlers can scrub error
// bodies the same way log output is scrubbed.
func Redact(s string) string {
	for _, re := range redactRegexps {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// contextHandler lifts the well-known context values into log attributes.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{h.Handler.WithGroup(name)}
}

// WithRequestID stamps a request id onto the context for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithTargetService records the gateway routing target on the context.
func WithTargetService(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, TargetServiceKey, service)
}

// WithSessionID stamps a session id onto the context for log correlation.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// WithUserID stamps a user id onto the context for log correlation.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// RequestID returns the request id from ctx, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}
