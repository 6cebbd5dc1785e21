package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/telemetry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name             string
		yamlContent      string
		skipFileCreation bool
		wantConfig       *Config
		wantErr          string
	}{
		{
			name: "full_config",
			yamlContent: `environment: server-dev
probe:
  maxAttempts: 10
  retryDelay: 500ms
  attemptTimeout: 2s
rebuild:
  allowedApps: ["remoteapp1"]
host:
  upstream: http://localhost:3001
telemetry:
  enabled: true
  metrics:
    enabled: true
    exporters: ["prometheus"]`,
			wantConfig: &Config{
				Environment: "server-dev",
				Probe: &ProbeConfig{
					MaxAttempts:    10,
					RetryDelay:     "500ms",
					AttemptTimeout: "2s",
				},
				Rebuild: &RebuildConfig{AllowedApps: []string{"remoteapp1"}},
				Host:    &HostConfig{Upstream: "http://localhost:3001"},
				Telemetry: &telemetry.Config{
					Enabled: true,
					Metrics: &telemetry.MetricsConfig{
						Enabled:   true,
						Exporters: []string{"prometheus"},
					},
				},
			},
		},
		{
			name: "environment_table_override",
			yamlContent: `environments:
  local:
    host:
      origin: http://localhost:4000
      port: 4000
    remotes:
      - name: checkout
        origin: http://localhost:4100
        port: 4100`,
			wantConfig: &Config{
				Environments: environment.Table{
					environment.ModeLocal: {
						Host: environment.HostEndpoint{Origin: "http://localhost:4000", Port: 4000},
						Remotes: []environment.RemoteEndpoint{
							{Name: "checkout", Origin: "http://localhost:4100", Port: 4100},
						},
					},
				},
			},
		},
		{
			name:        "empty_file",
			yamlContent: ``,
			wantConfig:  &Config{},
		},
		{
			name:        "invalid_yaml",
			yamlContent: `probe: [invalid yaml`,
			wantErr:     "failed to parse YAML config",
		},
		{
			name:        "unknown_environment",
			yamlContent: `environment: staging`,
			wantErr:     "unknown environment",
		},
		{
			name: "unknown_mode_in_table",
			yamlContent: `environments:
  staging:
    host:
      origin: http://localhost:4000
    remotes: []`,
			wantErr: "unknown environment",
		},
		{
			name: "remote_without_origin_or_manifest",
			yamlContent: `environments:
  local:
    host:
      origin: http://localhost:4000
    remotes:
      - name: checkout`,
			wantErr: "manifestUrl is required",
		},
		{
			name: "invalid_retry_delay",
			yamlContent: `probe:
  retryDelay: soon`,
			wantErr: "retryDelay must be a valid duration",
		},
		{
			name: "negative_attempts",
			yamlContent: `probe:
  maxAttempts: -1`,
			wantErr: "maxAttempts must not be negative",
		},
		{
			name: "upstream_and_static_dir",
			yamlContent: `host:
  upstream: http://localhost:3001
  staticDir: ./dist`,
			wantErr: "only one of upstream or staticDir",
		},
		{
			name: "relative_upstream",
			yamlContent: `host:
  upstream: localhost:3001`,
			wantErr: "upstream must be an absolute http(s) URL",
		},
		{
			name: "invalid_telemetry",
			yamlContent: `telemetry:
  enabled: true
  metrics:
    enabled: true
    exporters: ["statsd"]`,
			wantErr: "unknown exporter",
		},
		{
			name:             "file_not_found",
			skipFileCreation: true,
			wantErr:          "failed to evaluate symlinks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var configPath string
			if tt.skipFileCreation {
				configPath = filepath.Join(t.TempDir(), "non-existent.yaml")
			} else {
				configPath = writeConfig(t, tt.yamlContent)
			}

			config, err := LoadConfig(WithConfigPath(configPath))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, config)
		})
	}
}

func TestLoadConfig_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")

	_, err = LoadConfig(WithConfigPath(""))
	require.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Environment: "nope",
		Probe:       &ProbeConfig{AttemptTimeout: "-1s"},
		Host:        &HostConfig{Upstream: "ftp://example.com"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, environment.ErrUnknownEnvironment)
	assert.Contains(t, err.Error(), "attemptTimeout must not be negative")
	assert.Contains(t, err.Error(), "upstream must be an absolute http(s) URL")

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestProbeConfig_Getters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         *ProbeConfig
		wantMax     int
		wantDelay   time.Duration
		wantTimeout time.Duration
	}{
		{
			name:        "nil uses defaults",
			cfg:         nil,
			wantMax:     DefaultMaxAttempts,
			wantDelay:   DefaultRetryDelay,
			wantTimeout: DefaultAttemptTimeout,
		},
		{
			name:        "zero values use defaults",
			cfg:         &ProbeConfig{},
			wantMax:     30,
			wantDelay:   time.Second,
			wantTimeout: time.Second,
		},
		{
			name:        "explicit values",
			cfg:         &ProbeConfig{MaxAttempts: 60, RetryDelay: "250ms", AttemptTimeout: "3s"},
			wantMax:     60,
			wantDelay:   250 * time.Millisecond,
			wantTimeout: 3 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantMax, tt.cfg.GetMaxAttempts())
			assert.Equal(t, tt.wantDelay, tt.cfg.GetRetryDelay())
			assert.Equal(t, tt.wantTimeout, tt.cfg.GetAttemptTimeout())
		})
	}
}

func TestRebuildConfig_GetAllowedApps(t *testing.T) {
	t.Parallel()

	var nilCfg *RebuildConfig
	assert.Nil(t, nilCfg.GetAllowedApps())
	assert.Nil(t, (&RebuildConfig{AllowedApps: []string{" ", ""}}).GetAllowedApps())
	assert.Equal(t, []string{"remoteapp1", "remoteapp2"},
		(&RebuildConfig{AllowedApps: []string{" remoteapp1", "remoteapp2 "}}).GetAllowedApps())
}

func TestHostConfig_Getters(t *testing.T) {
	t.Parallel()

	var nilCfg *HostConfig
	assert.Empty(t, nilCfg.GetUpstream())
	assert.Empty(t, nilCfg.GetStaticDir())

	cfg := &HostConfig{StaticDir: "./dist"}
	assert.Equal(t, "./dist", cfg.GetStaticDir())
	assert.Empty(t, cfg.GetUpstream())
}

func TestWithConfigPath_Symlink(t *testing.T) {
	t.Parallel()

	target := writeConfig(t, "environment: local\n")
	link := filepath.Join(t.TempDir(), "link.yaml")
	require.NoError(t, os.Symlink(target, link))

	cfg, err := LoadConfig(WithConfigPath(link))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Environment)
}

//nolint:paralleltest // modifies MF_ENV
func TestSelectMode(t *testing.T) {
	cfg := &Config{Environment: "server-prod"}

	t.Setenv(environment.EnvVar, "")
	assert.Equal(t, "server-prod", cfg.SelectMode(""))
	assert.Equal(t, "dev-remote", cfg.SelectMode("dev-remote"))

	var nilCfg *Config
	assert.Empty(t, nilCfg.SelectMode(""))

	t.Setenv(environment.EnvVar, "server-dev")
	assert.Equal(t, "server-dev", cfg.SelectMode(""))
	assert.Equal(t, "local", cfg.SelectMode("local"))
}
