package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/madgic/madgic-chat/pkg/telemetry"
)

// Provider holds the tracer, meter and redactor of a process. Tracer and Meter
// are always usable; they are no-ops for disabled signals.
type Provider struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	Redactor *telemetry.Redactor

	shutdownFuncs []func(context.Context) error
}

// Init sets up the enabled signals and installs them globally.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	level, err := telemetry.ParseLevel(cfg.PIILevel)
	if err != nil {
		return nil, err
	}

	provider := &Provider{
		Tracer:   otel.Tracer(cfg.ServiceName),
		Meter:    otel.Meter(cfg.ServiceName),
		Redactor: telemetry.NewRedactor(level, cfg.ServiceName),
	}
	if !cfg.TracingEnabled && !cfg.MetricsEnabled {
		return provider, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	endpoint := trimScheme(cfg.OTLPEndpoint)

	if cfg.TracingEnabled {
		tp, err := newTracerProvider(ctx, cfg, endpoint, res)
		if err != nil {
			return nil, fmt.Errorf("failed to init tracer: %w", err)
		}
		provider.Tracer = tp.Tracer(cfg.ServiceName)
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)

		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if cfg.MetricsEnabled {
		mp, err := newMeterProvider(ctx, cfg, endpoint, res)
		if err != nil {
			return nil, fmt.Errorf("failed to init meter: %w", err)
		}
		provider.Meter = mp.Meter(cfg.ServiceName)
		provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)

		otel.SetMeterProvider(mp)
	}

	return provider, nil
}

// Shutdown flushes and stops every exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range p.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newTracerProvider(ctx context.Context, cfg Config, endpoint string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithHeaders(cfg.OTLPHeaders),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.TraceBatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, endpoint string, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithHeaders(cfg.OTLPHeaders),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(res),
	), nil
}

// trimScheme turns "http://host:4318" into "host:4318"; the OTLP HTTP options
// take a bare host:port.
func trimScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}
