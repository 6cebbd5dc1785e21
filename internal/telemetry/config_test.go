package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfstack/mfgate/internal/versions"
)

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	var nilCfg *Config
	assert.Equal(t, DefaultServiceName, nilCfg.GetServiceName())
	assert.Equal(t, versions.GetVersionInfo().Version, nilCfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, nilCfg.GetEndpoint())

	cfg := &Config{ServiceName: "checkout-host", ServiceVersion: "1.4.0", Endpoint: "otel:4318"}
	assert.Equal(t, "checkout-host", cfg.GetServiceName())
	assert.Equal(t, "1.4.0", cfg.GetServiceVersion())
	assert.Equal(t, "otel:4318", cfg.GetEndpoint())
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	var nilCfg *TracingConfig
	assert.InDelta(t, DefaultSampling, nilCfg.GetSampling(), 0)
	assert.InDelta(t, DefaultSampling, (&TracingConfig{}).GetSampling(), 0)
	assert.InDelta(t, 0.25, (&TracingConfig{Sampling: 0.25}).GetSampling(), 0)
}

func TestMetricsConfig_Exporters(t *testing.T) {
	t.Parallel()

	var nilCfg *MetricsConfig
	assert.Equal(t, []string{ExporterOTLP}, nilCfg.GetExporters())
	assert.True(t, nilCfg.HasExporter(ExporterOTLP))
	assert.False(t, nilCfg.HasExporter(ExporterPrometheus))

	cfg := &MetricsConfig{Exporters: []string{ExporterPrometheus}}
	assert.True(t, cfg.HasExporter(ExporterPrometheus))
	assert.False(t, cfg.HasExporter(ExporterOTLP))
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr []string
	}{
		{name: "nil", cfg: nil},
		{
			name: "disabled ignores bad sections",
			cfg: &Config{
				Tracing: &TracingConfig{Enabled: true, Sampling: 7},
				Metrics: &MetricsConfig{Enabled: true, Exporters: []string{"statsd"}},
			},
		},
		{
			name: "valid",
			cfg: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 0.5},
				Metrics: &MetricsConfig{Enabled: true, Exporters: []string{ExporterOTLP, ExporterPrometheus}},
			},
		},
		{
			name: "disabled sections are not checked",
			cfg: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Sampling: -1},
				Metrics: &MetricsConfig{Exporters: []string{"statsd"}},
			},
		},
		{
			name: "every problem is reported",
			cfg: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
				Metrics: &MetricsConfig{Enabled: true, Exporters: []string{"statsd", "graphite"}},
			},
			wantErr: []string{"tracing: sampling must be between 0 and 1", `"statsd"`, `"graphite"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
