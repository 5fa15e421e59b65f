package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/lattice/internal/config"
)

// Tracer wraps OpenTelemetry tracing for the platform services. The two
// hot paths carry spans: the gateway's forwarded calls and the model
// service's vendor calls.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a tracer for a service plus a shutdown function that
// flushes pending spans. With no collector endpoint configured the tracer
// records nothing and shutdown is a no-op.
func NewTracer(serviceName string, cfg config.TracingConfig) (*Tracer, func(context.Context) error) {
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(serviceName)}, func(context.Context) error { return nil }
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		// A broken exporter should not keep a service from starting.
		return &Tracer{tracer: otel.Tracer(serviceName)}, func(context.Context) error { return nil }
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		res = resource.Default()
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{tracer: provider.Tracer(serviceName)}, provider.Shutdown
}

// StartProxySpan opens a server span for one forwarded gateway call.
func (t *Tracer) StartProxySpan(ctx context.Context, fullMethod, target string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gateway.proxy",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(t.commonAttrs(ctx,
			attribute.String("rpc.method", fullMethod),
			attribute.String("proxy.target", target),
		)...),
	)
}

// StartChatSpan opens a client span around one vendor inference call.
func (t *Tracer) StartChatSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "llm."+provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.commonAttrs(ctx,
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		)...),
	)
}

func (t *Tracer) commonAttrs(ctx context.Context, attrs ...attribute.KeyValue) []attribute.KeyValue {
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	return attrs
}

// RecordSpanError marks a span failed. A nil err leaves it untouched.
func RecordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}
