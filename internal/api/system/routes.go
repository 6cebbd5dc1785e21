// Package system provides the health, readiness and version endpoints.
package system

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mfstack/mfgate/internal/api/common"
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/gate"
	"github.com/mfstack/mfgate/internal/probe"
	"github.com/mfstack/mfgate/internal/versions"
)

// GateStatus is the read-only view of the readiness gate
type GateStatus interface {
	State() gate.State
	Results() []probe.Result
	Remotes() []environment.RemoteEndpoint
}

// Router creates a router for the system endpoints. A nil status reports
// ready with no remotes.
func Router(status GateStatus) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(status))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
//
// @Summary		Health check
// @Description	Check if mfgate is alive
// @Tags			system
// @Produce		json
// @Success		200	{object}	HealthResponse
// @Router			/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports the gate state with per-remote outcomes. It
// answers 503 until the gate settles; a degraded gate is still ready to serve.
//
// @Summary		Readiness check
// @Description	Report whether remote probing has settled
// @Tags			system
// @Produce		json
// @Success		200	{object}	ReadinessResponse
// @Failure		503	{object}	ReadinessResponse
// @Router			/readiness [get]
func readinessHandler(status GateStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if status == nil {
			common.WriteJSONResponse(w, ReadinessResponse{Status: gate.Ready.String(), Remotes: []RemoteStatus{}},
				http.StatusOK)
			return
		}

		state := status.State()
		resp := ReadinessResponse{
			Status:  state.String(),
			Remotes: remoteStatuses(status, state),
		}

		code := http.StatusOK
		if !state.Settled() {
			code = http.StatusServiceUnavailable
		}
		common.WriteJSONResponse(w, resp, code)
	}
}

func remoteStatuses(status GateStatus, state gate.State) []RemoteStatus {
	if state.Settled() {
		results := status.Results()
		out := make([]RemoteStatus, 0, len(results))
		for _, res := range results {
			rs := RemoteStatus{
				Name:        res.RemoteName,
				ManifestURL: res.URL,
				Outcome:     res.Outcome.String(),
				Attempts:    res.Attempts,
				ElapsedMs:   res.ElapsedMs(),
			}
			if res.LastError != nil {
				rs.Error = res.LastError.Error()
			}
			out = append(out, rs)
		}
		return out
	}

	remotes := status.Remotes()
	out := make([]RemoteStatus, 0, len(remotes))
	for _, r := range remotes {
		out = append(out, RemoteStatus{Name: r.Name, ManifestURL: r.ManifestURL})
	}
	return out
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Description	Get version information about mfgate
// @Tags			system
// @Produce		json
// @Success		200	{object}	VersionResponse
// @Router			/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
