package system

import "github.com/mfstack/mfgate/internal/versions"

// HealthResponse is the liveness body; it never depends on remotes
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// RemoteStatus is the readiness view of one remote
type RemoteStatus struct {
	Name        string `json:"name" example:"remoteapp1"`
	ManifestURL string `json:"manifest_url" example:"http://localhost:3002/mf-manifest.json"`
	// Empty until the gate settles
	Outcome   string `json:"outcome,omitempty" example:"ready"`
	Attempts  int    `json:"attempts,omitempty" example:"3"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty" example:"2004"`
	Error     string `json:"error,omitempty"`
}

// ReadinessResponse reports the gate state and, once settled, each probe outcome
type ReadinessResponse struct {
	Status  string         `json:"status" example:"ready"`
	Remotes []RemoteStatus `json:"remotes"`
}

// VersionResponse is the build information served on /version
type VersionResponse = versions.VersionInfo
