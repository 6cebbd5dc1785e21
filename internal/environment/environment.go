// Package environment resolves a named deployment environment to the concrete
// host and remote endpoints of a module-federation setup.
package environment

import (
	"fmt"
	"slices"
	"strings"
)

// Mode identifies a deployment environment
type Mode string

const (
	// ModeLocal runs the host and every remote on the developer machine
	ModeLocal Mode = "local"

	// ModeServerDev points at the shared development servers
	ModeServerDev Mode = "server-dev"

	// ModeServerProd points at the production servers
	ModeServerProd Mode = "server-prod"

	// ModeDevRemote runs the host locally against production remotes
	ModeDevRemote Mode = "dev-remote"
)

const (
	// EnvVar is the environment variable that selects the mode
	EnvVar = "MF_ENV"

	// DefaultMode is used when no mode is given
	DefaultMode = ModeLocal

	// ManifestPath is the well-known path a remote serves its manifest on
	ManifestPath = "/mf-manifest.json"
)

var knownModes = []Mode{ModeLocal, ModeServerDev, ModeServerProd, ModeDevRemote}

// Modes returns every recognised mode in a stable order
func Modes() []Mode {
	return slices.Clone(knownModes)
}

// IsValid reports whether m is one of the recognised modes
func (m Mode) IsValid() bool {
	return slices.Contains(knownModes, m)
}

// String implements fmt.Stringer
func (m Mode) String() string {
	return string(m)
}

// ParseMode converts a mode name into a Mode. Empty or blank names yield
// DefaultMode; names that match no known mode fail with a ConfigurationError.
func ParseMode(name string) (Mode, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return DefaultMode, nil
	}

	mode := Mode(trimmed)
	if !mode.IsValid() {
		return "", &ConfigurationError{
			Mode: name,
			Err:  fmt.Errorf("%w (expected one of %s)", ErrUnknownEnvironment, joinModes(knownModes)),
		}
	}
	return mode, nil
}

// HostEndpoint describes where the host application is served
type HostEndpoint struct {
	Origin string `yaml:"origin" json:"origin"`
	Port   int    `yaml:"port" json:"port"`
}

// RemoteEndpoint describes one remote application of an environment
type RemoteEndpoint struct {
	Name        string `yaml:"name" json:"name"`
	Origin      string `yaml:"origin" json:"origin"`
	Port        int    `yaml:"port,omitempty" json:"port,omitempty"`
	ManifestURL string `yaml:"manifestUrl,omitempty" json:"manifestUrl"`
}

// EnvironmentConfig is the resolved, read-only view of one environment.
//
//nolint:revive // environment.EnvironmentConfig reads fine at call sites
type EnvironmentConfig struct {
	mode    Mode
	host    HostEndpoint
	remotes []RemoteEndpoint
}

func newEnvironmentConfig(mode Mode, def Definition) *EnvironmentConfig {
	return &EnvironmentConfig{
		mode:    mode,
		host:    def.Host,
		remotes: slices.Clone(def.Remotes),
	}
}

// Mode returns the environment mode
func (c *EnvironmentConfig) Mode() Mode {
	return c.mode
}

// Host returns the host endpoint
func (c *EnvironmentConfig) Host() HostEndpoint {
	return c.host
}

// Remotes returns a copy of the remote endpoints. Callers must not assume a
// fixed count; it varies by mode.
func (c *EnvironmentConfig) Remotes() []RemoteEndpoint {
	return slices.Clone(c.remotes)
}

// RemoteNames returns the names of all remotes in declaration order
func (c *EnvironmentConfig) RemoteNames() []string {
	names := make([]string, 0, len(c.remotes))
	for _, r := range c.remotes {
		names = append(names, r.Name)
	}
	return names
}

func joinModes(modes []Mode) string {
	parts := make([]string, 0, len(modes))
	for _, m := range modes {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, ", ")
}
