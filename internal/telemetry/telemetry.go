// Package telemetry wraps the OTel SDK's TracerProvider setup so router
// dispatches and pipeline runs can be instrumented as spans. When disabled,
// global providers remain the no-op default.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Config controls whether tracing is enabled and at what sample rate.
type Config struct {
	Enabled     bool
	ServiceName string
	SampleRate  float64 // 0..1, ignored if Enabled is false
}

// Providers holds the SDK TracerProvider. Shutdown is a no-op when tracing
// was never enabled.
type Providers struct {
	tp *sdktrace.TracerProvider
}

// Init sets up the global TracerProvider. No OTLP exporter is wired here —
// this repo has no outbound wire-protocol component to carry spans to a
// collector, so spans are sampled and held in-process for any
// in-process SpanProcessor a caller registers, rather than shipped out.
func Init(ctx context.Context, cfg Config, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("telemetry disabled, using noop tracer provider")
		return &Providers{}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("telemetry initialized",
		zap.String("service_name", cfg.ServiceName),
		zap.Float64("sample_rate", cfg.SampleRate))

	return &Providers{tp: tp}, nil
}

// Shutdown flushes and releases the tracer provider. Safe on a noop
// Providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
