// Package telemetry sets up OpenTelemetry metric export for lambdaproxy
// functions.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DefaultInterval is how often metrics are pushed to the collector.
const DefaultInterval = 60 * time.Second

// Options configures metric export.
type Options struct {
	// Interval between exports, DefaultInterval when zero
	Interval time.Duration

	// Attributes are added to the resource of every metric
	Attributes []attribute.KeyValue
}

// NewResource describes the function emitting metrics.
func NewResource(ctx context.Context, serviceName string, attrs ...attribute.KeyValue) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// Initialize installs a global MeterProvider exporting over OTLP/gRPC. The
// exporter is configured through the standard OTEL_EXPORTER_OTLP_*
// environment variables. The returned function flushes and stops the
// provider.
func Initialize(ctx context.Context, serviceName string, opts Options) (func(context.Context) error, error) {
	res, err := NewResource(ctx, serviceName, opts.Attributes...)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		),
	)

	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
