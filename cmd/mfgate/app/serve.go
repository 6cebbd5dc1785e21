package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gateway "github.com/mfstack/mfgate/internal/app"
	"github.com/mfstack/mfgate/internal/config"
	"github.com/mfstack/mfgate/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the host application behind the readiness gate",
	Long: `Start probing every remote of the selected environment and serve the host
application. Requests other than /health, /readiness, /version, /metrics and
/__mf are held until every remote answered or gave up.

The host is either proxied to an upstream dev server (--upstream) or served
from a built bundle (--static-dir).`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	telemetryFlushTimeout  = 5 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("upstream", "", "Proxy host requests to this URL")
	serveCmd.Flags().String("static-dir", "", "Serve the host application from this directory")

	bindFlags(serveCmd.Flags(), "address", "upstream", "static-dir")
}

// applyHostFlags lets the command line replace the configured host source
func applyHostFlags(cfg *config.Config, upstream, staticDir string) {
	if upstream == "" && staticDir == "" {
		return
	}
	cfg.Host = &config.HostConfig{Upstream: upstream, StaticDir: staticDir}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(viper.GetString("config"))
	if err != nil {
		return err
	}

	applyHostFlags(cfg, viper.GetString("upstream"), viper.GetString("static-dir"))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	opts := []gateway.GatewayAppOptions{
		gateway.WithConfig(cfg),
		gateway.WithEnvironmentMode(cfg.SelectMode(viper.GetString("env"))),
		gateway.WithAddress(viper.GetString("address")),
		gateway.WithMeterProvider(tel.MeterProvider()),
		gateway.WithTracerProvider(tel.TracerProvider()),
	}
	if h := tel.MetricsHandler(); h != nil {
		opts = append(opts, gateway.WithMetricsHandler(h))
	}

	gw, err := gateway.NewGatewayApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- gw.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	case <-cmd.Context().Done():
	}

	if err := gw.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errChan
}
