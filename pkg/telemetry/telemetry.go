// Package telemetry configures the OpenTelemetry trace and metric providers for a service.
package telemetry

import (
	"context"
	"fmt"

	"github.com/abgdnv/gopos/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

func newResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
}

// NewTracerProvider installs the global tracer provider and propagator.
// When tracing is disabled the provider records nothing but context propagation still works.
func NewTracerProvider(ctx context.Context, serviceName string, cfg config.TelemetryConfig) (*tracesdk.TracerProvider, error) {
	opts := []tracesdk.TracerProviderOption{
		tracesdk.WithResource(newResource(serviceName)),
	}
	if cfg.Traces.Enabled {
		collectorOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Traces.OtlpHttp.Endpoint),
			otlptracehttp.WithTimeout(cfg.Traces.OtlpHttp.Timeout),
		}
		if cfg.Traces.OtlpHttp.Insecure {
			collectorOpts = append(collectorOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, collectorOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, tracesdk.WithBatcher(exporter))
	}

	tp := tracesdk.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

// NewMeterProvider installs a global meter provider backed by the Prometheus exporter.
// Metrics become visible on the default promhttp handler.
func NewMeterProvider(serviceName string) (*sdkmetric.MeterProvider, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(serviceName)),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}
