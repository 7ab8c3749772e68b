package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is replaced by InitTracing; until then spans go to the no-op
// global provider.
var Tracer trace.Tracer = otel.Tracer("skillswap-api")

// TracingConfig selects where spans go.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	// Exporter is "otlp"; anything else prints spans to stdout.
	Exporter     string
	OTLPEndpoint string
	// SamplerRatio below 1 samples root spans; children follow the parent.
	SamplerRatio float64
}

func (c TracingConfig) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if c.Exporter == "otlp" {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(c.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func (c TracingConfig) sampler() sdktrace.Sampler {
	switch {
	case c.SamplerRatio >= 1:
		return sdktrace.AlwaysSample()
	case c.SamplerRatio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SamplerRatio))
	}
}

// InitTracing installs the global tracer provider and W3C propagators. The
// returned func flushes pending spans.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		Tracer = otel.Tracer(cfg.ServiceName)
		return noop, nil
	}

	ctx := context.Background()
	exp, err := cfg.exporter(ctx)
	if err != nil {
		return noop, fmt.Errorf("tracing exporter %q: %w", cfg.Exporter, err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return noop, fmt.Errorf("tracing resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	Tracer = provider.Tracer(cfg.ServiceName)
	return provider.Shutdown, nil
}

// StartSpan opens an internal span, e.g. around a job run or a swap
// transition.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

// EndSpan marks the span failed when err is set, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
