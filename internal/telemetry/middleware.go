package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// HTTPMetricsMeterName is the meter scope of the request instruments
	HTTPMetricsMeterName = "github.com/mfstack/mfgate/http"

	unknownRoute = "unknown_route"
)

// requestDurationBuckets reach a minute: the first page load after startup is
// held by the readiness gate for as long as probing takes.
var requestDurationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30, 60}

// HTTPMetrics records per-request instruments labelled by chi route
type HTTPMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics registers the request instruments on provider. A nil
// provider yields nil metrics, whose Middleware is a pass-through.
func NewHTTPMetrics(provider metric.MeterProvider) (*HTTPMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(HTTPMetricsMeterName)

	duration, durErr := meter.Float64Histogram("mfgate_http_request_duration_seconds",
		metric.WithDescription("Time from request arrival to response, including time held by the gate"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(requestDurationBuckets...),
	)
	requests, reqErr := meter.Int64Counter("mfgate_http_requests_total",
		metric.WithDescription("Requests served, by method, route and status"),
		metric.WithUnit("{request}"),
	)
	inFlight, flightErr := meter.Int64UpDownCounter("mfgate_http_active_requests",
		metric.WithDescription("Requests in flight, including those held by the gate"),
		metric.WithUnit("{request}"),
	)
	if err := errors.Join(durErr, reqErr, flightErr); err != nil {
		return nil, err
	}

	return &HTTPMetrics{duration: duration, requests: requests, inFlight: inFlight}, nil
}

// Middleware records duration, count and in-flight gauge for every request
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		began := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.inFlight.Add(ctx, 1)
		defer m.inFlight.Add(ctx, -1)

		next.ServeHTTP(ww, r)

		labels := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", routePattern(r)),
			attribute.String("status_code", strconv.Itoa(ww.Status())),
		)
		m.duration.Record(ctx, time.Since(began).Seconds(), labels)
		m.requests.Add(ctx, 1, labels)
	})
}

// routePattern returns the matched chi pattern ("/__mf/rebuild/{appName}",
// "/*") so label cardinality does not grow with asset paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unknownRoute
}

// MetricsMiddleware builds HTTPMetrics on provider and returns its middleware
func MetricsMiddleware(provider metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	metrics, err := NewHTTPMetrics(provider)
	if err != nil {
		return nil, err
	}
	return metrics.Middleware, nil
}
