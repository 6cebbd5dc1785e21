package telemetry

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the HTTP tracer
	TracerName = "github.com/mfstack/mfgate/http"

	// MaxUserAgentLength caps the user agent recorded on spans
	MaxUserAgentLength = 256
)

// untracedPaths are polled by orchestrators or held open for the lifetime of a
// dev client, so a span per request carries no signal.
var untracedPaths = []string{"/health", "/readiness", "/metrics", "/__mf/hmr"}

// TracingOption customizes TracingMiddleware
type TracingOption func(*requestTracer)

// WithPropagator extracts the incoming trace context with p instead of the
// global propagator.
func WithPropagator(p propagation.TextMapPropagator) TracingOption {
	return func(rt *requestTracer) {
		if p != nil {
			rt.propagator = p
		}
	}
}

type requestTracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// TracingMiddleware starts a server span per request, continuing the caller's
// trace when one is propagated. A nil provider disables tracing.
func TracingMiddleware(provider trace.TracerProvider, opts ...TracingOption) func(http.Handler) http.Handler {
	if provider == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	rt := &requestTracer{
		tracer:     provider.Tracer(TracerName),
		propagator: otel.GetTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt.wrap
}

func (rt *requestTracer) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(untracedPaths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		parent := rt.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := rt.tracer.Start(parent, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				semconv.UserAgentOriginal(truncateUserAgent(r.UserAgent())),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		// chi fills in the route while routing
		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCode(ww.Status()),
		)
		span.SetStatus(spanStatus(ww.Status()))
	})
}

// spanStatus fails the span on server errors only; client errors stay unset
func spanStatus(status int) (codes.Code, string) {
	switch {
	case status >= http.StatusInternalServerError:
		return codes.Error, http.StatusText(status)
	case status < http.StatusBadRequest:
		return codes.Ok, ""
	default:
		return codes.Unset, ""
	}
}

func truncateUserAgent(ua string) string {
	if len(ua) > MaxUserAgentLength {
		return ua[:MaxUserAgentLength]
	}
	return ua
}
