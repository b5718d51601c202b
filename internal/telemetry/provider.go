package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	mu       sync.RWMutex
	provider trace.TracerProvider
	shutdown func(context.Context) error
)

func noShutdown(context.Context) error { return nil }

// InitProvider installs the global tracer provider described by cfg and
// returns its shutdown function. Disabled tracing installs a noop provider.
// Without an endpoint, spans are sampled and recorded but never exported.
func InitProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var tp trace.TracerProvider = noop.NewTracerProvider()
	stop := noShutdown

	if cfg.Enabled {
		sdk, err := newSDKProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		tp, stop = sdk, sdk.Shutdown
	}

	mu.Lock()
	provider, shutdown = tp, stop
	mu.Unlock()
	otel.SetTracerProvider(tp)
	return stop, nil
}

func newSDKProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	if cfg.Endpoint != "" {
		httpOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(newGuardedExporter(exp),
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// Shutdown flushes and stops the provider installed by InitProvider
func Shutdown(ctx context.Context) error {
	mu.RLock()
	stop := shutdown
	mu.RUnlock()
	if stop == nil {
		return nil
	}
	return stop(ctx)
}

// ForceFlush exports pending spans without stopping the provider
func ForceFlush(ctx context.Context) error {
	mu.RLock()
	tp := provider
	mu.RUnlock()
	if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
		return sdk.ForceFlush(ctx)
	}
	return nil
}

// SetTracerProvider replaces the provider used by the span helpers. Tests
// install an in-memory recorder with it.
func SetTracerProvider(tp trace.TracerProvider) {
	mu.Lock()
	defer mu.Unlock()
	provider = tp
}

// GetTracerProvider returns the provider used by the span helpers
func GetTracerProvider() trace.TracerProvider {
	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return noop.NewTracerProvider()
	}
	return provider
}
