// Package telemetry sets up OpenTelemetry tracing and metrics for mfgate and
// defines the instruments recorded by the probe, gate and reload components.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers for the life of the process
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// registry is set only when the prometheus exporter is enabled
	registry *prometheus.Registry
}

// Option configures New
type Option func(*options)

type options struct {
	config *Config
}

// WithTelemetryConfig sets the telemetry section of the configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// New builds the providers described by the configuration. A nil or disabled
// configuration yields no-op providers. Call Shutdown before exiting.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.config

	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		cfg = &Config{}
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	providerOpts := []ProviderOption{
		WithService(cfg.GetServiceName(), cfg.GetServiceVersion()),
		WithCollector(cfg.GetEndpoint(), cfg.Insecure),
	}

	t := &Telemetry{}
	if cfg.Enabled && cfg.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.HasExporter(ExporterPrometheus) {
		t.registry = prometheus.NewRegistry()
		providerOpts = append(providerOpts, WithPrometheusRegisterer(t.registry))
	}

	var tracing *TracingConfig
	var metrics *MetricsConfig
	if cfg.Enabled {
		tracing, metrics = cfg.Tracing, cfg.Metrics
	}

	tp, err := NewTracerProvider(ctx, append(providerOpts, WithTracing(tracing))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	t.tracerProvider = tp

	mp, err := NewMeterProvider(ctx, append(providerOpts, WithMetrics(metrics))...)
	if err != nil {
		// The tracer provider may already hold exporter connections
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}
	t.meterProvider = mp

	if cfg.Enabled {
		slog.Info("Telemetry initialized",
			"service_name", cfg.GetServiceName(),
			"service_version", cfg.GetServiceVersion())
	}
	return t, nil
}

// TracerProvider returns the tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the prometheus scrape handler, or nil when the
// prometheus exporter is not enabled
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops SDK providers. No-op providers are skipped.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if tp, ok := t.tracerProvider.(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	return errors.Join(errs...)
}
