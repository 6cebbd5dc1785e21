package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OTLPPushInterval is how often metrics are pushed to the collector
const OTLPPushInterval = 30 * time.Second

// ProviderOption configures NewTracerProvider and NewMeterProvider
type ProviderOption func(*providerSettings)

// providerSettings is shared by both providers so one Config drives them alike
type providerSettings struct {
	service    string
	version    string
	endpoint   string
	insecure   bool
	tracing    *TracingConfig
	metrics    *MetricsConfig
	registerer prometheus.Registerer
}

func defaultProviderSettings() *providerSettings {
	return &providerSettings{
		service:  DefaultServiceName,
		version:  (&Config{}).GetServiceVersion(),
		endpoint: DefaultEndpoint,
	}
}

// WithService sets the service.name and service.version resource attributes
func WithService(name, version string) ProviderOption {
	return func(s *providerSettings) {
		if name != "" {
			s.service = name
		}
		if version != "" {
			s.version = version
		}
	}
}

// WithCollector sets the OTLP/HTTP collector address
func WithCollector(endpoint string, insecure bool) ProviderOption {
	return func(s *providerSettings) {
		if endpoint != "" {
			s.endpoint = endpoint
		}
		s.insecure = insecure
	}
}

// WithTracing enables tracing as described by tc. Nil or disabled yields a no-op provider.
func WithTracing(tc *TracingConfig) ProviderOption {
	return func(s *providerSettings) {
		s.tracing = tc
	}
}

// WithMetrics enables metrics as described by mc. Nil or disabled yields a no-op provider.
func WithMetrics(mc *MetricsConfig) ProviderOption {
	return func(s *providerSettings) {
		s.metrics = mc
	}
}

// WithPrometheusRegisterer is where the prometheus exporter registers its
// collector. It must be set when the prometheus exporter is enabled.
func WithPrometheusRegisterer(reg prometheus.Registerer) ProviderOption {
	return func(s *providerSettings) {
		s.registerer = reg
	}
}

func (s *providerSettings) resource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.service),
			semconv.ServiceVersion(s.version),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// NewTracerProvider builds an SDK tracer provider exporting over OTLP/HTTP and
// installs it, with the W3C propagators, as the global provider. The caller
// owns shutdown.
func NewTracerProvider(ctx context.Context, opts ...ProviderOption) (trace.TracerProvider, error) {
	s := defaultProviderSettings()
	for _, opt := range opts {
		opt(s)
	}

	if s.tracing == nil || !s.tracing.Enabled {
		slog.Debug("Tracing disabled")
		return tracenoop.NewTracerProvider(), nil
	}

	res, err := s.resource(ctx)
	if err != nil {
		return nil, err
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.tracing.GetSampling()))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if s.insecure {
		slog.Warn("Exporting traces over plain HTTP", "endpoint", s.endpoint)
	}
	slog.Info("Tracing enabled", "endpoint", s.endpoint, "sampling", s.tracing.GetSampling())

	return tp, nil
}

// NewMeterProvider builds an SDK meter provider with one reader per configured
// exporter and installs it as the global provider. The caller owns shutdown.
func NewMeterProvider(ctx context.Context, opts ...ProviderOption) (metric.MeterProvider, error) {
	s := defaultProviderSettings()
	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil || !s.metrics.Enabled {
		slog.Debug("Metrics disabled")
		return metricnoop.NewMeterProvider(), nil
	}

	res, err := s.resource(ctx)
	if err != nil {
		return nil, err
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, name := range s.metrics.GetExporters() {
		reader, err := s.metricReader(ctx, name)
		if err != nil {
			return nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetMeterProvider(mp)

	slog.Info("Metrics enabled", "exporters", s.metrics.GetExporters())
	return mp, nil
}

func (s *providerSettings) metricReader(ctx context.Context, exporter string) (sdkmetric.Reader, error) {
	switch exporter {
	case ExporterOTLP:
		exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(s.endpoint)}
		if s.insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(OTLPPushInterval)), nil

	case ExporterPrometheus:
		if s.registerer == nil {
			return nil, fmt.Errorf("prometheus exporter requires a registerer")
		}
		exp, err := otelprom.New(otelprom.WithRegisterer(s.registerer))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		return exp, nil

	default:
		return nil, fmt.Errorf("unknown exporter %q", exporter)
	}
}
