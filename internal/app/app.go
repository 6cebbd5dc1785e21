// Package app wires the mfgate components together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mfstack/mfgate/internal/config"
)

// GatewayApp encapsulates all components needed to run mfgate.
// It provides lifecycle management and graceful shutdown capabilities.
type GatewayApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start launches remote probing and then serves HTTP. Probing runs on the
// application context so it is unaffected by individual requests. Start
// blocks until the HTTP server stops or encounters an error.
func (app *GatewayApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve is Start on an existing listener
func (app *GatewayApp) Serve(listener net.Listener) error {
	if err := app.components.Gate.Start(app.ctx); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to start readiness gate: %w", err)
	}

	slog.Info("Server listening",
		"address", listener.Addr().String(),
		"environment", app.components.Environment.Mode().String(),
		"remotes", app.components.Environment.RemoteNames())

	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// It ends any running probes, disconnects dev clients and then shuts down
// the HTTP server.
func (app *GatewayApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	// Hijacked websocket connections are not tracked by Shutdown
	app.components.Hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *GatewayApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *GatewayApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired components
func (app *GatewayApp) Components() *AppComponents {
	return app.components
}
