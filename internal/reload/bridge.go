package reload

//go:generate mockgen -destination=mocks/mock_reloader.go -package=mocks -source=bridge.go Reloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mfstack/mfgate/internal/otel"
	"github.com/mfstack/mfgate/internal/telemetry"
)

// TracerName is the tracer used for rebuild announcement spans
const TracerName = "github.com/mfstack/mfgate/reload"

// ErrMissingAppName is returned for an announcement without an app name
var ErrMissingAppName = errors.New("announcement is missing appName")

// Reloader delivers a full-reload to dev clients
type Reloader interface {
	FullReload(ctx context.Context, app string) error
}

// Bridge turns rebuild announcements for known remotes into full-reload
// directives. Announcements for any other name are ignored.
type Bridge struct {
	reloader Reloader
	allowed  map[string]struct{}
	metrics  *telemetry.ReloadMetrics
	tracer   trace.Tracer
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithBridgeMetrics sets the reload metrics. Nil disables metrics.
func WithBridgeMetrics(m *telemetry.ReloadMetrics) BridgeOption {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithBridgeTracerProvider sets the tracer provider. Nil keeps the no-op tracer.
func WithBridgeTracerProvider(tp trace.TracerProvider) BridgeOption {
	return func(b *Bridge) {
		if tp != nil {
			b.tracer = tp.Tracer(TracerName)
		}
	}
}

// NewBridge creates a Bridge accepting announcements for allowedApps. An
// empty list accepts nothing.
func NewBridge(reloader Reloader, allowedApps []string, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		reloader: reloader,
		allowed:  make(map[string]struct{}, len(allowedApps)),
		tracer:   noop.NewTracerProvider().Tracer(TracerName),
	}
	for _, app := range allowedApps {
		if app = strings.TrimSpace(app); app != "" {
			b.allowed[app] = struct{}{}
		}
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Announce handles one rebuild announcement. It reports whether a reload was
// issued. Exactly one full-reload is sent per accepted announcement.
func (b *Bridge) Announce(ctx context.Context, a Announcement) (bool, error) {
	ctx, span := otel.StartSpan(ctx, b.tracer, "reload.Announce",
		trace.WithAttributes(otel.AttrRebuildApp.String(a.AppName)))
	defer span.End()

	if a.AppName == "" {
		otel.RecordError(span, ErrMissingAppName)
		return false, ErrMissingAppName
	}

	if _, ok := b.allowed[a.AppName]; !ok {
		slog.Debug("Ignoring rebuild of unknown app", "app", a.AppName)
		b.metrics.RecordAnnouncement(ctx, a.AppName, false)
		return false, nil
	}

	b.metrics.RecordAnnouncement(ctx, a.AppName, true)
	slog.Info("Remote app rebuilt, reloading dev clients", "app", a.AppName)

	if err := b.reloader.FullReload(ctx, a.AppName); err != nil {
		otel.RecordError(span, err)
		return false, fmt.Errorf("failed to reload clients for %s: %w", a.AppName, err)
	}

	return true, nil
}

// AllowedApps returns the accepted app names, sorted
func (b *Bridge) AllowedApps() []string {
	apps := make([]string, 0, len(b.allowed))
	for app := range b.allowed {
		apps = append(apps, app)
	}
	slices.Sort(apps)
	return apps
}
