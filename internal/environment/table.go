package environment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Definition is the table entry for one mode
type Definition struct {
	Host    HostEndpoint     `yaml:"host"`
	Remotes []RemoteEndpoint `yaml:"remotes"`
}

// Table maps each mode to its definition
type Table map[Mode]Definition

// DefaultTable returns the built-in environment table. Local development runs
// two remotes next to the host; the server-shaped modes use a single remote.
func DefaultTable() Table {
	return Table{
		ModeLocal: {
			Host: HostEndpoint{Origin: "http://localhost:3001", Port: 3001},
			Remotes: []RemoteEndpoint{
				{
					Name:        "remoteapp1",
					Origin:      "http://localhost:3002",
					Port:        3002,
					ManifestURL: "http://localhost:3002" + ManifestPath,
				},
				{
					Name:        "remoteapp2",
					Origin:      "http://localhost:3003",
					Port:        3003,
					ManifestURL: "http://localhost:3003" + ManifestPath,
				},
			},
		},
		ModeServerDev: {
			Host: HostEndpoint{Origin: "https://dev.example.com", Port: 11000},
			Remotes: []RemoteEndpoint{
				{
					Name:        "remoteapp1",
					Origin:      "https://dev-remote.example.com",
					Port:        12000,
					ManifestURL: "https://dev-remote.example.com" + ManifestPath,
				},
			},
		},
		ModeServerProd: {
			Host: HostEndpoint{Origin: "https://prod.example.com", Port: 11000},
			Remotes: []RemoteEndpoint{
				{
					Name:        "remoteapp1",
					Origin:      "https://prod-remote.example.com",
					Port:        12000,
					ManifestURL: "https://prod-remote.example.com" + ManifestPath,
				},
			},
		},
		ModeDevRemote: {
			Host: HostEndpoint{Origin: "http://localhost:11000", Port: 11000},
			Remotes: []RemoteEndpoint{
				{
					Name:        "remoteapp1",
					Origin:      "https://prod-remote.example.com",
					Port:        12000,
					ManifestURL: "https://prod-remote.example.com" + ManifestPath,
				},
			},
		},
	}
}

// Merge returns a new table where every mode present in overrides replaces
// the corresponding entry of t. Neither input is modified.
func (t Table) Merge(overrides Table) Table {
	merged := make(Table, len(t)+len(overrides))
	for mode, def := range t {
		merged[mode] = def
	}
	for mode, def := range overrides {
		merged[mode] = def.withDefaults()
	}
	return merged
}

// withDefaults fills a missing manifest URL from the remote origin
func (d Definition) withDefaults() Definition {
	remotes := make([]RemoteEndpoint, len(d.Remotes))
	for i, r := range d.Remotes {
		if r.ManifestURL == "" && r.Origin != "" {
			r.ManifestURL = strings.TrimSuffix(r.Origin, "/") + ManifestPath
		}
		remotes[i] = r
	}
	d.Remotes = remotes
	return d
}

// Validate checks every entry of the table
func (t Table) Validate() error {
	var errs []error
	for mode, def := range t {
		if !mode.IsValid() {
			errs = append(errs, &ConfigurationError{Mode: string(mode), Err: ErrUnknownEnvironment})
			continue
		}
		if err := def.validate(); err != nil {
			errs = append(errs, &ConfigurationError{Mode: string(mode), Err: err})
		}
	}
	return errors.Join(errs...)
}

func (d Definition) validate() error {
	if d.Host.Origin == "" {
		return fmt.Errorf("host.origin is required")
	}

	seen := make(map[string]bool, len(d.Remotes))
	for i, r := range d.Remotes {
		if r.Name == "" {
			return fmt.Errorf("remotes[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("remotes[%d]: duplicate remote name '%s'", i, r.Name)
		}
		seen[r.Name] = true

		if err := validateManifestURL(r.ManifestURL); err != nil {
			return fmt.Errorf("remotes[%d] (%s): %w", i, r.Name, err)
		}
	}
	return nil
}

func validateManifestURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("manifestUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid manifestUrl: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("manifestUrl must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("manifestUrl must be absolute: %s", raw)
	}
	return nil
}
