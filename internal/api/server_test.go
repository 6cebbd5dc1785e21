package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfstack/mfgate/internal/api"
	"github.com/mfstack/mfgate/internal/api/mf"
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/gate"
	"github.com/mfstack/mfgate/internal/probe"
	"github.com/mfstack/mfgate/internal/reload"
	"github.com/mfstack/mfgate/internal/reload/mocks"
)

type readyProber struct{}

func (readyProber) Probe(_ context.Context, r environment.RemoteEndpoint, _ ...probe.Option) probe.Result {
	return probe.Result{RemoteName: r.Name, URL: r.ManifestURL, Outcome: probe.Ready, Attempts: 1}
}

func hostHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("host"))
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	server := api.NewServer()

	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	server := api.NewServer()

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	for _, key := range []string{"version", "commit", "build_date", "go_version", "platform"} {
		assert.Contains(t, response, key)
	}
}

func TestReadinessEndpoint_FollowsGate(t *testing.T) {
	t.Parallel()

	remotes := []environment.RemoteEndpoint{
		{Name: "remoteapp1", ManifestURL: "http://localhost:3002/mf-manifest.json"},
	}
	g := gate.New(readyProber{}, remotes)
	server := api.NewServer(api.WithGateStatus(g))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"pending"`)

	require.NoError(t, g.Start(context.Background()))
	_, err := g.Wait(context.Background())
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ready"`)
	assert.Contains(t, rr.Body.String(), `"outcome":"ready"`)
}

func TestHostHandlerIsGated(t *testing.T) {
	t.Parallel()

	g := gate.New(readyProber{}, []environment.RemoteEndpoint{
		{Name: "remoteapp1", ManifestURL: "http://localhost:3002/mf-manifest.json"},
	})
	server := api.NewServer(
		api.WithMiddlewares(gate.DeferRequests(g)),
		api.WithGateStatus(g),
		api.WithHostHandler(hostHandler()),
	)

	// Health bypasses the gate even before it starts
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, g.Start(context.Background()))

	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "host", rr.Body.String())
}

func TestRebuildEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	reloader := mocks.NewMockReloader(ctrl)
	reloader.EXPECT().FullReload(gomock.Any(), "remoteapp1").Return(nil).Times(1)

	bridge := reload.NewBridge(reloader, []string{"remoteapp1"})
	server := api.NewServer(api.WithMFOptions(mf.WithAnnouncer(bridge)))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/__mf/rebuild",
		bytes.NewBufferString(`{"appName":"remoteapp1"}`)))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/__mf/rebuild",
		bytes.NewBufferString(`{"appName":"unknown"}`)))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	server := api.NewServer(api.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "# metrics", rr.Body.String())
}

func TestNoHostHandler(t *testing.T) {
	t.Parallel()
	server := api.NewServer()

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	handler := middleware.RequestID(api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
