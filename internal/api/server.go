// Package api assembles the mfgate HTTP router.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mfstack/mfgate/internal/api/mf"
	"github.com/mfstack/mfgate/internal/api/system"
)

// ServerOption configures the mfgate router
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	status         system.GateStatus
	mfOptions      []mf.Option
	metricsHandler http.Handler
	hostHandler    http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithGateStatus reports the gate on /readiness
func WithGateStatus(status system.GateStatus) ServerOption {
	return func(cfg *serverConfig) {
		cfg.status = status
	}
}

// WithMFOptions configures the /__mf routes
func WithMFOptions(opts ...mf.Option) ServerOption {
	return func(cfg *serverConfig) {
		cfg.mfOptions = append(cfg.mfOptions, opts...)
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithHostHandler serves the host application for every other path
func WithHostHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.hostHandler = h
	}
}

// NewServer creates and configures the HTTP router
func NewServer(opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	// Handle rather than Mount keeps the full path visible to the system router
	systemRoutes := system.Router(cfg.status)
	for _, path := range []string{"/health", "/readiness", "/version"} {
		r.Handle(path, systemRoutes)
	}

	r.Mount(mf.PathPrefix, mf.Router(cfg.mfOptions...))

	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	if cfg.hostHandler != nil {
		r.Handle("/*", cfg.hostHandler)
	}

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
