package gate

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
)

// Waiter is the part of Gate the middleware depends on
type Waiter interface {
	Wait(ctx context.Context) (State, error)
	Done() <-chan struct{}
	State() State
}

type deferConfig struct {
	bypassPaths []string
}

// MiddlewareOption configures DeferRequests
type MiddlewareOption func(*deferConfig)

// WithBypassPaths replaces the paths that are never deferred
func WithBypassPaths(paths ...string) MiddlewareOption {
	return func(cfg *deferConfig) {
		cfg.bypassPaths = paths
	}
}

// DeferRequests holds every request until w settles, then forwards it whatever
// the outcome. Requests arriving before settlement all share the gate's single
// wait; requests arriving after pass straight through. A request whose client
// goes away while deferred is dropped.
func DeferRequests(w Waiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &deferConfig{bypassPaths: DefaultBypassPaths}
	for _, opt := range opts {
		opt(cfg)
	}

	var released sync.Once
	release := func(ctx context.Context, state State) {
		released.Do(func() {
			if state == Degraded {
				slog.WarnContext(ctx, "Releasing requests with unreachable remotes", "state", state.String())
				return
			}
			slog.InfoContext(ctx, "Releasing requests", "state", state.String())
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			select {
			case <-w.Done():
				release(r.Context(), w.State())
				next.ServeHTTP(rw, r)
				return
			default:
			}

			if IsBypassPath(r.URL.Path, cfg.bypassPaths) {
				next.ServeHTTP(rw, r)
				return
			}

			slog.DebugContext(r.Context(), "Deferring request until remotes are ready",
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()))

			state, err := w.Wait(r.Context())
			if err != nil {
				slog.DebugContext(r.Context(), "Client went away while request was deferred",
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"error", err)
				return
			}

			release(r.Context(), state)
			next.ServeHTTP(rw, r)
		})
	}
}
