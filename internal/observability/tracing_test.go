package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/lattice/internal/config"
)

func TestNewTracer_NoEndpointIsInert(t *testing.T) {
	tracer, stop := NewTracer("test-service", config.TracingConfig{})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx, span := tracer.StartChatSpan(ctx, "openai", "gpt-4o")
	RecordSpanError(span, errors.New("boom"))
	span.End()

	if span.SpanContext().IsValid() {
		t.Error("tracer without a collector endpoint produced a recording span")
	}
	if ctx == nil {
		t.Fatal("span start returned a nil context")
	}
	if err := stop(context.Background()); err != nil {
		t.Errorf("shutdown of disabled tracer: %v", err)
	}
}

func TestRecordSpanError_NilErrIsNoOp(t *testing.T) {
	tracer, _ := NewTracer("test-service", config.TracingConfig{})
	_, span := tracer.StartProxySpan(context.Background(), "/svc/Method", "sessions")
	defer span.End()

	RecordSpanError(span, nil)
}
