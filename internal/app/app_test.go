package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfstack/mfgate/internal/config"
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/gate"
	"github.com/mfstack/mfgate/internal/probe"
	"github.com/mfstack/mfgate/internal/reload"
)

// newRemote serves a manifest that becomes available after failures misses
func newRemote(t *testing.T, failures int32) *httptest.Server {
	t.Helper()
	var seen atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != environment.ManifestPath {
			http.NotFound(w, r)
			return
		}
		if seen.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"remote"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createTestConfig(remotes ...environment.RemoteEndpoint) *config.Config {
	return &config.Config{
		Environments: environment.Table{
			environment.ModeLocal: {
				Host:    environment.HostEndpoint{Origin: "http://localhost:3001", Port: 3001},
				Remotes: remotes,
			},
		},
		Probe: &config.ProbeConfig{
			MaxAttempts:    5,
			RetryDelay:     "10ms",
			AttemptTimeout: "500ms",
		},
	}
}

// serveApp runs app on a loopback listener and returns its base URL
func serveApp(t *testing.T, app *GatewayApp) (string, <-chan error) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Serve(listener)
	}()
	return "http://" + listener.Addr().String(), errChan
}

func stopApp(t *testing.T, app *GatewayApp, errChan <-chan error) {
	t.Helper()
	require.NoError(t, app.Stop(5*time.Second))
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Stop()")
	}
}

func hostHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("host app"))
	})
}

func TestGatewayApp_ServeReady(t *testing.T) {
	t.Parallel()

	remote1 := newRemote(t, 2)
	remote2 := newRemote(t, 0)

	app, err := NewGatewayApp(context.Background(),
		WithConfig(createTestConfig(
			environment.RemoteEndpoint{Name: "remoteapp1", Origin: remote1.URL},
			environment.RemoteEndpoint{Name: "remoteapp2", Origin: remote2.URL},
		)),
		WithHostHandler(hostHandler()),
	)
	require.NoError(t, err)

	baseURL, errChan := serveApp(t, app)
	defer stopApp(t, app, errChan)

	// Deferred until both remotes answered
	resp, err := http.Get(baseURL + "/checkout")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "host app", string(body))
	assert.Equal(t, gate.Ready, app.Components().Gate.State())

	results := app.Components().Gate.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "remoteapp1", results[0].RemoteName)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, 1, results[1].Attempts)

	resp, err = http.Get(baseURL + "/readiness")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGatewayApp_ServeDegraded(t *testing.T) {
	t.Parallel()

	remote := newRemote(t, 1000)

	app, err := NewGatewayApp(context.Background(),
		WithConfig(createTestConfig(environment.RemoteEndpoint{Name: "remoteapp1", Origin: remote.URL})),
		WithHostHandler(hostHandler()),
	)
	require.NoError(t, err)

	baseURL, errChan := serveApp(t, app)
	defer stopApp(t, app, errChan)

	// Unreachable remotes do not block the host forever
	resp, err := http.Get(baseURL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gate.Degraded, app.Components().Gate.State())

	results := app.Components().Gate.Results()
	require.Len(t, results, 1)
	assert.Equal(t, probe.Unreachable, results[0].Outcome)
	assert.Equal(t, 5, results[0].Attempts)
}

func TestGatewayApp_HealthWhileProbing(t *testing.T) {
	t.Parallel()

	prober := newBlockingProber(probe.Ready)
	app, err := NewGatewayApp(context.Background(),
		WithProber(prober),
		WithHostHandler(hostHandler()),
	)
	require.NoError(t, err)

	baseURL, errChan := serveApp(t, app)
	defer stopApp(t, app, errChan)

	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(baseURL + "/readiness")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// A deferred request gives up with its own context
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/", nil)
	require.NoError(t, err)
	_, err = http.DefaultClient.Do(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(prober.release)
	require.Eventually(t, func() bool {
		return app.Components().Gate.State() == gate.Ready
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"remoteapp1", "remoteapp2"}, prober.Calls())
}

func TestGatewayApp_RebuildReloadsClients(t *testing.T) {
	t.Parallel()

	prober := newBlockingProber(probe.Ready)
	close(prober.release)

	app, err := NewGatewayApp(context.Background(), WithProber(prober))
	require.NoError(t, err)

	baseURL, errChan := serveApp(t, app)
	defer stopApp(t, app, errChan)

	wsURL := "ws" + baseURL[len("http"):] + "/__mf/hmr"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	var directive reload.Directive
	require.NoError(t, conn.ReadJSON(&directive))
	assert.Equal(t, reload.TypeConnected, directive.Type)

	resp, err = http.Post(baseURL+"/__mf/rebuild/remoteapp1", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&directive))
	assert.Equal(t, reload.FullReload("remoteapp1"), directive)

	resp, err = http.Post(baseURL+"/__mf/rebuild/billing", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestGatewayApp_StartTwice(t *testing.T) {
	t.Parallel()

	prober := newBlockingProber(probe.Ready)
	close(prober.release)

	app, err := NewGatewayApp(context.Background(), WithProber(prober))
	require.NoError(t, err)

	baseURL, errChan := serveApp(t, app)
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	err = app.Serve(listener)
	require.Error(t, err)
	assert.ErrorIs(t, err, gate.ErrAlreadyStarted)

	stopApp(t, app, errChan)
}

func TestGatewayApp_StopClosesHub(t *testing.T) {
	t.Parallel()

	prober := newBlockingProber(probe.Ready)
	app, err := NewGatewayApp(context.Background(), WithProber(prober))
	require.NoError(t, err)

	baseURL, errChan := serveApp(t, app)
	close(prober.release)

	wsURL := "ws" + baseURL[len("http"):] + "/__mf/hmr"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	var directive reload.Directive
	require.NoError(t, conn.ReadJSON(&directive))
	assert.Equal(t, 1, app.Components().Hub.Clients())

	stopApp(t, app, errChan)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
	assert.Eventually(t, func() bool {
		return app.Components().Hub.Clients() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayApp_StartInvalidAddress(t *testing.T) {
	t.Parallel()

	app, err := NewGatewayApp(context.Background(),
		WithProber(newBlockingProber(probe.Ready)),
		WithAddress("127.0.0.1:1"),
	)
	require.NoError(t, err)

	// Make the address unusable
	app.httpServer.Addr = "256.0.0.1:80"
	err = app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
	assert.Equal(t, gate.Pending, app.Components().Gate.State())
}
