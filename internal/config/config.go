// Package config provides configuration loading and management for mfgate.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/telemetry"
)

// EnvPrefix is the prefix for mfgate environment variables (MFGATE_LOG_LEVEL, ...)
const EnvPrefix = "MFGATE"

const (
	// DefaultMaxAttempts is the probe attempt budget used by serve
	DefaultMaxAttempts = 30

	// DefaultRetryDelay is the pause between probe attempts
	DefaultRetryDelay = time.Second

	// DefaultAttemptTimeout bounds a single probe request
	DefaultAttemptTimeout = time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Environment selects the mode when neither --env nor MF_ENV is set
	Environment string `yaml:"environment,omitempty"`

	// Environments replaces built-in environment table entries per mode
	Environments environment.Table `yaml:"environments,omitempty"`

	Probe     *ProbeConfig      `yaml:"probe,omitempty"`
	Rebuild   *RebuildConfig    `yaml:"rebuild,omitempty"`
	Host      *HostConfig       `yaml:"host,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ProbeConfig defines the retry budget for manifest probes
type ProbeConfig struct {
	// MaxAttempts is the number of attempts per remote (default 30)
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// RetryDelay is the pause between attempts, e.g. "1s" (default 1s)
	RetryDelay string `yaml:"retryDelay,omitempty"`

	// AttemptTimeout bounds a single request, e.g. "1s" (default 1s)
	AttemptTimeout string `yaml:"attemptTimeout,omitempty"`
}

// RebuildConfig defines which remotes may trigger a live reload
type RebuildConfig struct {
	// AllowedApps lists accepted app names. When empty the remotes of the
	// resolved environment are accepted.
	AllowedApps []string `yaml:"allowedApps,omitempty"`
}

// HostConfig defines how the host bundle is served
type HostConfig struct {
	// Upstream is the URL of a host dev server to proxy to
	Upstream string `yaml:"upstream,omitempty"`

	// StaticDir is a directory holding a built host bundle
	StaticDir string `yaml:"staticDir,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Environment != "" {
		if _, err := environment.ParseMode(c.Environment); err != nil {
			errs = append(errs, fmt.Errorf("environment: %w", err))
		}
	}

	if len(c.Environments) > 0 {
		// Merge fills manifest URLs from origins the same way the resolver does
		if err := (environment.Table{}).Merge(c.Environments).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("environments: %w", err))
		}
	}

	if err := c.Probe.validate(); err != nil {
		errs = append(errs, fmt.Errorf("probe: %w", err))
	}

	if err := c.Host.validate(); err != nil {
		errs = append(errs, fmt.Errorf("host: %w", err))
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (p *ProbeConfig) validate() error {
	if p == nil {
		return nil
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("maxAttempts must not be negative, got %d", p.MaxAttempts)
	}
	if err := validateDuration("retryDelay", p.RetryDelay); err != nil {
		return err
	}
	return validateDuration("attemptTimeout", p.AttemptTimeout)
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '500ms', '2s'): %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative, got %s", field, value)
	}
	return nil
}

func (h *HostConfig) validate() error {
	if h == nil {
		return nil
	}
	if h.Upstream != "" && h.StaticDir != "" {
		return fmt.Errorf("only one of upstream or staticDir may be specified")
	}
	if h.Upstream != "" {
		u, err := url.Parse(h.Upstream)
		if err != nil {
			return fmt.Errorf("invalid upstream: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("upstream must be an absolute http(s) URL, got %q", h.Upstream)
		}
	}
	return nil
}

// SelectMode picks the environment mode name. An explicit flag wins, then
// MF_ENV, then the config file. The result may be empty, which resolves to
// the default mode.
func (c *Config) SelectMode(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if fromEnv := environment.ModeFromEnv(); fromEnv != "" {
		return fromEnv
	}
	if c == nil {
		return ""
	}
	return c.Environment
}

// GetMaxAttempts returns the probe attempt budget, using 30 if not specified
func (p *ProbeConfig) GetMaxAttempts() int {
	if p == nil || p.MaxAttempts == 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// GetRetryDelay returns the pause between attempts, using 1s if not specified
func (p *ProbeConfig) GetRetryDelay() time.Duration {
	return parseDurationOr(p.getRetryDelay(), DefaultRetryDelay)
}

// GetAttemptTimeout returns the per-attempt timeout, using 1s if not specified
func (p *ProbeConfig) GetAttemptTimeout() time.Duration {
	return parseDurationOr(p.getAttemptTimeout(), DefaultAttemptTimeout)
}

func (p *ProbeConfig) getRetryDelay() string {
	if p == nil {
		return ""
	}
	return p.RetryDelay
}

func (p *ProbeConfig) getAttemptTimeout() string {
	if p == nil {
		return ""
	}
	return p.AttemptTimeout
}

// parseDurationOr assumes value was already validated
func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// GetAllowedApps returns the configured allow-list trimmed of blanks. A nil
// result means "use the environment's remotes".
func (r *RebuildConfig) GetAllowedApps() []string {
	if r == nil {
		return nil
	}
	var apps []string
	for _, app := range r.AllowedApps {
		if app = strings.TrimSpace(app); app != "" {
			apps = append(apps, app)
		}
	}
	return apps
}

// GetUpstream returns the host upstream URL, or "" when unset
func (h *HostConfig) GetUpstream() string {
	if h == nil {
		return ""
	}
	return h.Upstream
}

// GetStaticDir returns the host static directory, or "" when unset
func (h *HostConfig) GetStaticDir() string {
	if h == nil {
		return ""
	}
	return h.StaticDir
}
