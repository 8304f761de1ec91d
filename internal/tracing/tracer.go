package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// DashboardTracer starts spans for repository and controller work.
type DashboardTracer struct {
	tracer trace.Tracer
}

// NewTracerProvider creates an OTLP/gRPC exporting tracer provider and
// installs it globally.
func NewTracerProvider(serviceName, serviceVersion, otlpEndpoint string) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("dashboard-core"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return install(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()), // TODO: make the sampling ratio configurable
	)), nil
}

// NewSyncTracerProvider exports spans synchronously to exp. Used by tests
// with an in-memory exporter.
func NewSyncTracerProvider(exp sdktrace.SpanExporter) *TracerProvider {
	return install(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)))
}

func install(tp *sdktrace.TracerProvider) *TracerProvider {
	otel.SetTracerProvider(tp)
	return &TracerProvider{tp: tp}
}

// Shutdown flushes and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// NewDashboardTracer creates a tracer on the global provider. Without a
// configured provider spans are no-ops.
func NewDashboardTracer(serviceName string) *DashboardTracer {
	return &DashboardTracer{tracer: otel.Tracer(serviceName)}
}

// StartRepoSpan starts a span for one dashboard repository operation.
func (dt *DashboardTracer) StartRepoSpan(ctx context.Context, operation, dashboardID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("repo.operation", operation),
		attribute.String("component", "dashboard-repo"),
	}
	if dashboardID != "" {
		attrs = append(attrs, attribute.String("dashboard.id", dashboardID))
	}
	return dt.tracer.Start(ctx, "dashboard_repo."+operation, trace.WithAttributes(attrs...))
}

// StartStoreSpan starts a span around a record store call.
func (dt *DashboardTracer) StartStoreSpan(ctx context.Context, operation, backend, key string) (context.Context, trace.Span) {
	return dt.tracer.Start(ctx, "store."+operation,
		trace.WithAttributes(
			attribute.String("store.operation", operation),
			attribute.String("store.backend", backend),
			attribute.String("store.key", key),
			attribute.String("component", "record-store"),
		),
	)
}

// StartControllerSpan starts a span for a dashboard controller action.
func (dt *DashboardTracer) StartControllerSpan(ctx context.Context, action, dashboardID string) (context.Context, trace.Span) {
	return dt.tracer.Start(ctx, "dashboard."+action,
		trace.WithAttributes(
			attribute.String("dashboard.action", action),
			attribute.String("dashboard.id", dashboardID),
			attribute.String("component", "dashboard-controller"),
		),
	)
}

// RecordRepoMetrics records the outcome of a repository operation on a span
func (dt *DashboardTracer) RecordRepoMetrics(span trace.Span, duration time.Duration, records int, success bool) {
	span.SetAttributes(
		attribute.Int64("repo.duration_ms", duration.Milliseconds()),
		attribute.Int("repo.record_count", records),
		attribute.Bool("repo.success", success),
	)
	if !success {
		span.SetStatus(codes.Error, "repository operation failed")
	}
}

// RecordError records an error on a span
func (dt *DashboardTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
