// Package host serves the host application bundle behind the readiness gate,
// either by proxying a running host dev server or from a built directory.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNoSource is returned when neither an upstream nor a directory is given
var ErrNoSource = errors.New("host requires an upstream URL or a static directory")

// NewProxy returns a handler that forwards every request to upstream.
// Websocket upgrades (the dev server's own HMR socket) pass through.
func NewProxy(upstream string) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", upstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream must be an absolute URL: %s", upstream)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Warn("Host upstream request failed",
				"upstream", target.String(),
				"path", r.URL.Path,
				"error", err)
			http.Error(w, "host upstream unavailable", http.StatusBadGateway)
		},
	}

	return proxy, nil
}

// NewStatic serves a built host bundle from dir. Paths with no matching file
// fall back to index.html so client-side routes resolve.
func NewStatic(dir string) (http.Handler, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve static dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir is not a directory: %s", dir)
	}

	root := os.DirFS(abs)
	files := http.FileServerFS(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			files.ServeHTTP(w, r)
			return
		}
		if _, err := os.Stat(filepath.Join(abs, filepath.FromSlash(name))); err == nil {
			files.ServeHTTP(w, r)
			return
		}
		// Asset-looking paths are genuine misses
		if path.Ext(name) != "" {
			http.NotFound(w, r)
			return
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		files.ServeHTTP(w, r2)
	}), nil
}

// New picks the proxy or static handler. Exactly one of upstream and dir
// should be set; upstream wins when both are.
func New(upstream, dir string) (http.Handler, error) {
	switch {
	case upstream != "":
		return NewProxy(upstream)
	case dir != "":
		return NewStatic(dir)
	default:
		return nil, ErrNoSource
	}
}
