package gate

import (
	"path"
	"strings"
)

// DefaultBypassPaths are never deferred: probes of mfgate itself and the
// live-reload endpoints must answer while remotes are still starting.
var DefaultBypassPaths = []string{"/health", "/readiness", "/version", "/metrics", "/__mf"}

// IsBypassPath reports whether requestPath equals one of paths or sits below
// one of them on a segment boundary (/__mf matches /__mf/hmr but not /__mfx).
func IsBypassPath(requestPath string, paths []string) bool {
	// Encoded separators could smuggle a gated path past the prefix check
	lower := strings.ToLower(requestPath)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%2e") {
		return false
	}

	clean := normalise(requestPath)
	for _, p := range paths {
		bypass := normalise(p)
		if bypass == "/" {
			return true
		}
		if clean == bypass || strings.HasPrefix(clean, bypass+"/") {
			return true
		}
	}
	return false
}

func normalise(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
