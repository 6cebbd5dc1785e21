// Package otel provides OpenTelemetry span helpers shared by mfgate components.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared across spans so traces stay consistent.
const (
	AttrEnvironment   = attribute.Key("mf.environment")
	AttrRemoteName    = attribute.Key("mf.remote.name")
	AttrManifestURL   = attribute.Key("mf.remote.manifest_url")
	AttrAttempts      = attribute.Key("mf.probe.attempts")
	AttrOutcome       = attribute.Key("mf.probe.outcome")
	AttrRemoteCount   = attribute.Key("mf.gate.remotes")
	AttrGateState     = attribute.Key("mf.gate.state")
	AttrRebuildApp    = attribute.Key("mf.rebuild.app")
	AttrReloadClients = attribute.Key("mf.reload.clients")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and marks the span failed.
// It safely handles nil spans and nil errors. The status description stays
// generic; full details travel on the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
