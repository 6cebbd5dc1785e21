// Package telemetry provides OpenTelemetry instrumentation for mfgate.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ProbeMetricsMeterName is the name used for the manifest probe meter
	ProbeMetricsMeterName = "github.com/mfstack/mfgate/probe"

	// GateMetricsMeterName is the name used for the readiness gate meter
	GateMetricsMeterName = "github.com/mfstack/mfgate/gate"

	// ReloadMetricsMeterName is the name used for the rebuild bridge meter
	ReloadMetricsMeterName = "github.com/mfstack/mfgate/reload"
)

// ProbeMetrics holds the OpenTelemetry instruments for manifest probing
type ProbeMetrics struct {
	attempts      metric.Int64Counter
	probeDuration metric.Float64Histogram
}

// NewProbeMetrics creates a new ProbeMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewProbeMetrics(provider metric.MeterProvider) (*ProbeMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ProbeMetricsMeterName)

	attempts, err := meter.Int64Counter(
		"mfgate_probe_attempts_total",
		metric.WithDescription("Number of manifest probe attempts by remote and result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram(
		"mfgate_probe_duration_seconds",
		metric.WithDescription("Time until a remote became ready or was given up on"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	return &ProbeMetrics{
		attempts:      attempts,
		probeDuration: probeDuration,
	}, nil
}

// RecordAttempt records one probe attempt. result is "success" or a failure class.
func (m *ProbeMetrics) RecordAttempt(ctx context.Context, remote, result string) {
	if m == nil || m.attempts == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("remote", remote),
		attribute.String("result", result),
	}

	m.attempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordProbeDuration records the total duration of a probe run
func (m *ProbeMetrics) RecordProbeDuration(ctx context.Context, remote string, duration time.Duration, ready bool) {
	if m == nil || m.probeDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("remote", remote),
		attribute.Bool("ready", ready),
	}

	m.probeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// GateMetrics holds the OpenTelemetry instruments for the readiness gate
type GateMetrics struct {
	settleDuration metric.Float64Histogram
	remotesReady   metric.Int64Gauge
}

// NewGateMetrics creates a new GateMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewGateMetrics(provider metric.MeterProvider) (*GateMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(GateMetricsMeterName)

	settleDuration, err := meter.Float64Histogram(
		"mfgate_gate_settle_duration_seconds",
		metric.WithDescription("Time from gate start until it settled"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	remotesReady, err := meter.Int64Gauge(
		"mfgate_gate_remotes",
		metric.WithDescription("Number of remotes per terminal outcome once the gate settled"),
		metric.WithUnit("{remote}"),
	)
	if err != nil {
		return nil, err
	}

	return &GateMetrics{
		settleDuration: settleDuration,
		remotesReady:   remotesReady,
	}, nil
}

// RecordSettled records the settle duration and per-outcome remote counts
func (m *GateMetrics) RecordSettled(ctx context.Context, state string, duration time.Duration, ready, unreachable int) {
	if m == nil {
		return
	}

	if m.settleDuration != nil {
		m.settleDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("state", state)))
	}

	if m.remotesReady != nil {
		m.remotesReady.Record(ctx, int64(ready),
			metric.WithAttributes(attribute.String("outcome", "ready")))
		m.remotesReady.Record(ctx, int64(unreachable),
			metric.WithAttributes(attribute.String("outcome", "unreachable")))
	}
}

// ReloadMetrics holds the OpenTelemetry instruments for the rebuild bridge
type ReloadMetrics struct {
	announcements metric.Int64Counter
	clients       metric.Int64UpDownCounter
}

// NewReloadMetrics creates a new ReloadMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewReloadMetrics(provider metric.MeterProvider) (*ReloadMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ReloadMetricsMeterName)

	announcements, err := meter.Int64Counter(
		"mfgate_rebuild_announcements_total",
		metric.WithDescription("Number of rebuild announcements received"),
		metric.WithUnit("{announcement}"),
	)
	if err != nil {
		return nil, err
	}

	clients, err := meter.Int64UpDownCounter(
		"mfgate_reload_clients",
		metric.WithDescription("Number of connected live-reload clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, err
	}

	return &ReloadMetrics{
		announcements: announcements,
		clients:       clients,
	}, nil
}

// RecordAnnouncement records a rebuild announcement and whether it triggered a reload
func (m *ReloadMetrics) RecordAnnouncement(ctx context.Context, app string, accepted bool) {
	if m == nil || m.announcements == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("app", app),
		attribute.Bool("accepted", accepted),
	}

	m.announcements.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordClientDelta adjusts the connected client count
func (m *ReloadMetrics) RecordClientDelta(ctx context.Context, delta int64) {
	if m == nil || m.clients == nil {
		return
	}

	m.clients.Add(ctx, delta)
}
