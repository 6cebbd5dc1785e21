// Package mf provides the module-federation development endpoints mounted
// under /__mf: rebuild announcements, the live reload socket and the
// resolved environment.
package mf

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mfstack/mfgate/internal/api/common"
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/reload"
)

// PathPrefix is where Router is mounted
const PathPrefix = "/__mf"

// maxAnnouncementBytes bounds the rebuild request body
const maxAnnouncementBytes = 64 << 10

// Announcer accepts rebuild announcements
type Announcer interface {
	Announce(ctx context.Context, a reload.Announcement) (bool, error)
}

// RebuildResponse is returned when an announcement triggered a reload
type RebuildResponse struct {
	Status string `json:"status" example:"reloaded"`
	App    string `json:"app" example:"remoteapp1"`
}

// EnvironmentResponse describes the resolved environment
type EnvironmentResponse struct {
	Mode    string                       `json:"mode" example:"local"`
	Host    environment.HostEndpoint     `json:"host"`
	Remotes []environment.RemoteEndpoint `json:"remotes"`
}

// Routes holds the dependencies of the /__mf handlers
type Routes struct {
	announcer Announcer
	hmr       http.Handler
	env       *environment.EnvironmentConfig
}

// Option configures Routes
type Option func(*Routes)

// WithAnnouncer enables the rebuild endpoints
func WithAnnouncer(a Announcer) Option {
	return func(r *Routes) {
		r.announcer = a
	}
}

// WithReloadHandler serves the live reload socket on /__mf/hmr
func WithReloadHandler(h http.Handler) Option {
	return func(r *Routes) {
		r.hmr = h
	}
}

// WithEnvironment enables /__mf/env
func WithEnvironment(env *environment.EnvironmentConfig) Option {
	return func(r *Routes) {
		r.env = env
	}
}

// Router creates the /__mf router. Endpoints whose dependency was not
// provided are not registered.
func Router(opts ...Option) http.Handler {
	routes := &Routes{}
	for _, opt := range opts {
		opt(routes)
	}

	r := chi.NewRouter()

	if routes.announcer != nil {
		r.Post("/rebuild", routes.rebuild)
		r.Post("/rebuild/{appName}", routes.rebuildApp)
	}
	if routes.hmr != nil {
		r.Get("/hmr", routes.hmr.ServeHTTP)
	}
	if routes.env != nil {
		r.Get("/env", routes.getEnvironment)
	}

	return r
}

// rebuild handles POST /__mf/rebuild
//
// @Summary		Announce a remote rebuild
// @Description	Reload connected dev clients when an allowed remote was rebuilt
// @Tags			mf
// @Accept			json
// @Produce		json
// @Param			announcement	body		reload.Announcement	true	"Rebuilt app"
// @Success		202				{object}	RebuildResponse
// @Success		204				"App is not in the allow-list"
// @Failure		400				{object}	map[string]string
// @Failure		503				{object}	map[string]string
// @Router			/__mf/rebuild [post]
func (rt *Routes) rebuild(w http.ResponseWriter, r *http.Request) {
	var a reload.Announcement
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnnouncementBytes))
	if err := dec.Decode(&a); err != nil {
		common.WriteErrorResponse(w, "invalid rebuild announcement: "+err.Error(), http.StatusBadRequest)
		return
	}
	rt.announce(w, r, a)
}

// rebuildApp handles POST /__mf/rebuild/{appName}
//
// @Summary		Announce a remote rebuild by path
// @Tags			mf
// @Produce		json
// @Param			appName	path		string	true	"Rebuilt app"
// @Success		202		{object}	RebuildResponse
// @Success		204		"App is not in the allow-list"
// @Failure		400		{object}	map[string]string
// @Router			/__mf/rebuild/{appName} [post]
func (rt *Routes) rebuildApp(w http.ResponseWriter, r *http.Request) {
	app, err := common.GetAndValidateURLParam(r, "appName")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rt.announce(w, r, reload.Announcement{AppName: app})
}

func (rt *Routes) announce(w http.ResponseWriter, r *http.Request, a reload.Announcement) {
	accepted, err := rt.announcer.Announce(r.Context(), a)
	switch {
	case errors.Is(err, reload.ErrMissingAppName):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		slog.Error("Failed to reload dev clients", "app", a.AppName, "error", err)
		common.WriteErrorResponse(w, "live reload unavailable", http.StatusServiceUnavailable)
	case !accepted:
		w.WriteHeader(http.StatusNoContent)
	default:
		common.WriteJSONResponse(w, RebuildResponse{Status: "reloaded", App: a.AppName}, http.StatusAccepted)
	}
}

// getEnvironment handles GET /__mf/env
//
// @Summary		Resolved environment
// @Tags			mf
// @Produce		json
// @Success		200	{object}	EnvironmentResponse
// @Router			/__mf/env [get]
func (rt *Routes) getEnvironment(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, EnvironmentResponse{
		Mode:    rt.env.Mode().String(),
		Host:    rt.env.Host(),
		Remotes: rt.env.Remotes(),
	}, http.StatusOK)
}
