package telemetry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mfstack/mfgate/internal/versions"
)

const (
	// DefaultServiceName is reported as service.name
	DefaultServiceName = "mfgate"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling samples every trace; a dev gateway sees little traffic
	DefaultSampling = 1.0

	// ExporterOTLP pushes metrics to the collector
	ExporterOTLP = "otlp"

	// ExporterPrometheus serves metrics for scraping on /metrics
	ExporterPrometheus = "prometheus"
)

var knownExporters = []string{ExporterOTLP, ExporterPrometheus}

// Config is the telemetry section of the mfgate configuration
type Config struct {
	// Enabled turns telemetry on. Tracing and metrics are still enabled separately.
	Enabled bool `yaml:"enabled"`

	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector as host:port; /v1/traces and /v1/metrics are appended
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends OTLP over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig is the tracing subsection
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of root traces kept, from 0 to 1. Zero means DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig is the metrics subsection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporters lists "otlp", "prometheus" or both. Empty means otlp.
	Exporters []string `yaml:"exporters,omitempty"`
}

// GetServiceName returns the service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c == nil || c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version or the build version
func (c *Config) GetServiceVersion() string {
	if c == nil || c.ServiceVersion == "" {
		return versions.GetVersionInfo().Version
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c == nil || c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio. An explicit 0 cannot be told apart
// from unset in YAML, so it also yields DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetExporters returns the configured exporters, defaulting to OTLP only
func (c *MetricsConfig) GetExporters() []string {
	if c == nil || len(c.Exporters) == 0 {
		return []string{ExporterOTLP}
	}
	return c.Exporters
}

// HasExporter reports whether the named exporter is enabled
func (c *MetricsConfig) HasExporter(name string) bool {
	return slices.Contains(c.GetExporters(), name)
}

// Validate checks an enabled configuration. Nil and disabled are always valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the sampling ratio
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0 and 1, got %g", c.Sampling)
	}
	return nil
}

// Validate checks every exporter name
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	for _, exp := range c.Exporters {
		if !slices.Contains(knownExporters, exp) {
			errs = append(errs, fmt.Errorf("unknown exporter %q (expected one of %v)", exp, knownExporters))
		}
	}
	return errors.Join(errs...)
}
