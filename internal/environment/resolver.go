package environment

import (
	"fmt"
	"slices"

	"github.com/spf13/viper"
)

// Resolver maps mode names to environment configurations. It holds an
// immutable table and is safe for concurrent use.
type Resolver struct {
	table Table
}

// Option configures a Resolver
type Option func(*resolverConfig)

type resolverConfig struct {
	overrides Table
}

// WithOverrides replaces built-in entries with the given definitions
func WithOverrides(overrides Table) Option {
	return func(cfg *resolverConfig) {
		cfg.overrides = overrides
	}
}

// NewResolver creates a resolver over the built-in table plus any overrides
func NewResolver(opts ...Option) (*Resolver, error) {
	cfg := &resolverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	table := DefaultTable().Merge(cfg.overrides)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment table: %w", err)
	}

	return &Resolver{table: table}, nil
}

// Resolve returns the configuration for the named mode. An empty name
// resolves to DefaultMode.
func (r *Resolver) Resolve(modeName string) (*EnvironmentConfig, error) {
	mode, err := ParseMode(modeName)
	if err != nil {
		return nil, err
	}

	def, ok := r.table[mode]
	if !ok {
		return nil, &ConfigurationError{Mode: modeName, Err: ErrUnknownEnvironment}
	}

	return newEnvironmentConfig(mode, def), nil
}

// ResolveFromEnv resolves the mode named by the MF_ENV environment variable
func (r *Resolver) ResolveFromEnv() (*EnvironmentConfig, error) {
	return r.Resolve(ModeFromEnv())
}

// Modes returns the modes present in the table
func (r *Resolver) Modes() []Mode {
	modes := make([]Mode, 0, len(r.table))
	for _, m := range knownModes {
		if _, ok := r.table[m]; ok {
			modes = append(modes, m)
		}
	}
	return slices.Clip(modes)
}

// ModeFromEnv returns the raw value of MF_ENV, or "" when unset
func ModeFromEnv() string {
	v := viper.New()
	v.AutomaticEnv()
	return v.GetString(EnvVar)
}

// Resolve resolves a mode against the built-in table
func Resolve(modeName string) (*EnvironmentConfig, error) {
	r, err := NewResolver()
	if err != nil {
		return nil, err
	}
	return r.Resolve(modeName)
}
