package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mfstack/mfgate/internal/api"
	"github.com/mfstack/mfgate/internal/api/mf"
	"github.com/mfstack/mfgate/internal/config"
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/gate"
	"github.com/mfstack/mfgate/internal/host"
	"github.com/mfstack/mfgate/internal/httpclient"
	"github.com/mfstack/mfgate/internal/probe"
	"github.com/mfstack/mfgate/internal/reload"
	"github.com/mfstack/mfgate/internal/telemetry"
)

const (
	defaultHTTPAddress       = ":8080"
	defaultReadHeaderTimeout = 5 * time.Second
	defaultReadTimeout       = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// GatewayAppOptions is a function that configures the gateway app builder
type GatewayAppOptions func(*gatewayAppConfig) error

// gatewayAppConfig collects everything NewGatewayApp needs. Overrides exist
// mainly for tests; production uses the defaults built from config.
type gatewayAppConfig struct {
	config *config.Config
	mode   string

	// Optional component overrides (primarily for testing)
	httpClient  httpclient.Client
	prober      gate.Prober
	hostHandler http.Handler

	// HTTP server options
	address     string
	middlewares []func(http.Handler) http.Handler
	readTimeout time.Duration
	idleTimeout time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...GatewayAppOptions) (*gatewayAppConfig, error) {
	cfg := &gatewayAppConfig{
		address:     defaultHTTPAddress,
		readTimeout: defaultReadTimeout,
		idleTimeout: defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = &config.Config{}
	}

	return cfg, nil
}

// NewGatewayApp resolves the environment and builds the gate, the reload
// bridge and the HTTP server. An unknown environment fails here, before
// anything is served.
func NewGatewayApp(
	ctx context.Context,
	opts ...GatewayAppOptions,
) (*GatewayApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	env, err := buildEnvironment(cfg)
	if err != nil {
		return nil, err
	}

	readinessGate, err := buildGate(cfg, env)
	if err != nil {
		return nil, fmt.Errorf("failed to build readiness gate: %w", err)
	}

	hub, bridge, err := buildReloadComponents(cfg, env)
	if err != nil {
		return nil, fmt.Errorf("failed to build reload components: %w", err)
	}

	if cfg.hostHandler == nil {
		cfg.hostHandler, err = buildHostHandler(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build host handler: %w", err)
		}
	}

	components := &AppComponents{
		Environment: env,
		Gate:        readinessGate,
		Hub:         hub,
		Bridge:      bridge,
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Probes outlive the builder's caller; only Stop cancels them
	appCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	return &GatewayApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithEnvironmentMode selects the environment mode by name. Empty resolves
// to the default mode.
func WithEnvironmentMode(mode string) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.mode = mode
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		hostname, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if hostname == "localhost" {
			hostname = "127.0.0.1"
		}
		if hostname == "" {
			hostname = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(hostname + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the middlewares that run after the request defer
// middleware. Request IDs, real IP, recovery, telemetry and the defer
// middleware itself always run first.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithHTTPClient sets the client used to fetch remote manifests
func WithHTTPClient(c httpclient.Client) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithProber replaces the manifest prober (for testing)
func WithProber(p gate.Prober) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.prober = p
		return nil
	}
}

// WithHostHandler sets the handler serving the host application
func WithHostHandler(h http.Handler) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.hostHandler = h
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider
func WithMeterProvider(mp metric.MeterProvider) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves a scrape endpoint on /metrics
func WithMetricsHandler(h http.Handler) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildEnvironment resolves the environment against the built-in table
// merged with config overrides
func buildEnvironment(b *gatewayAppConfig) (*environment.EnvironmentConfig, error) {
	resolver, err := environment.NewResolver(environment.WithOverrides(b.config.Environments))
	if err != nil {
		return nil, err
	}

	env, err := resolver.Resolve(b.mode)
	if err != nil {
		return nil, err
	}

	slog.Info("Resolved environment",
		"environment", env.Mode().String(),
		"host_origin", env.Host().Origin,
		"remotes", env.RemoteNames())
	return env, nil
}

// ProbeOptions converts the probe section of the config into probe options
func ProbeOptions(pc *config.ProbeConfig) []probe.Option {
	return []probe.Option{
		probe.WithMaxAttempts(pc.GetMaxAttempts()),
		probe.WithRetryDelay(pc.GetRetryDelay()),
		probe.WithAttemptTimeout(pc.GetAttemptTimeout()),
	}
}

// buildGate builds the prober and the readiness gate over env's remotes
func buildGate(b *gatewayAppConfig, env *environment.EnvironmentConfig) (*gate.Gate, error) {
	var gateOpts []gate.Option

	if b.meterProvider != nil {
		gateMetrics, err := telemetry.NewGateMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create gate metrics: %w", err)
		}
		gateOpts = append(gateOpts, gate.WithMetrics(gateMetrics))
	}
	if b.tracerProvider != nil {
		gateOpts = append(gateOpts, gate.WithTracerProvider(b.tracerProvider))
	}

	if b.prober == nil {
		if b.httpClient == nil {
			b.httpClient = httpclient.NewDefaultClient(b.config.Probe.GetAttemptTimeout())
		}

		proberOpts := []probe.ProberOption{
			probe.WithDefaults(ProbeOptions(b.config.Probe)...),
			probe.WithTracerProvider(b.tracerProvider),
		}
		if b.meterProvider != nil {
			probeMetrics, err := telemetry.NewProbeMetrics(b.meterProvider)
			if err != nil {
				return nil, fmt.Errorf("failed to create probe metrics: %w", err)
			}
			proberOpts = append(proberOpts, probe.WithMetrics(probeMetrics))
		}

		b.prober = probe.New(b.httpClient, proberOpts...)
	}

	return gate.New(b.prober, env.Remotes(), gateOpts...), nil
}

// buildReloadComponents builds the live reload hub and the rebuild bridge.
// Without an explicit allow-list the environment's remotes are accepted.
func buildReloadComponents(
	b *gatewayAppConfig,
	env *environment.EnvironmentConfig,
) (*reload.Hub, *reload.Bridge, error) {
	var reloadMetrics *telemetry.ReloadMetrics
	if b.meterProvider != nil {
		var err error
		reloadMetrics, err = telemetry.NewReloadMetrics(b.meterProvider)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create reload metrics: %w", err)
		}
	}

	allowed := b.config.Rebuild.GetAllowedApps()
	if allowed == nil {
		allowed = env.RemoteNames()
	}

	hub := reload.NewHub(reload.WithHubMetrics(reloadMetrics))
	bridge := reload.NewBridge(hub, allowed,
		reload.WithBridgeMetrics(reloadMetrics),
		reload.WithBridgeTracerProvider(b.tracerProvider))

	slog.Info("Rebuild notifications enabled", "allowed_apps", bridge.AllowedApps())
	return hub, bridge, nil
}

// buildHostHandler picks the proxy or static host from config. Without
// either only the system and /__mf endpoints are served.
func buildHostHandler(b *gatewayAppConfig) (http.Handler, error) {
	h, err := host.New(b.config.Host.GetUpstream(), b.config.Host.GetStaticDir())
	if errors.Is(err, host.ErrNoSource) {
		slog.Warn("No host upstream or static directory configured, host requests will return 404")
		return nil, nil
	}
	return h, err
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *gatewayAppConfig,
	c *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// No request timeout middleware: deferred requests legitimately wait for
	// the whole probe budget.
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{api.LoggingMiddleware}
	}

	// Request IDs, panic recovery and telemetry wrap the defer middleware so
	// time spent held by the gate shows up in spans, metrics and logs.
	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	}

	if b.tracerProvider != nil {
		chain = append(chain, telemetry.TracingMiddleware(b.tracerProvider))
	}

	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		chain = append(chain, metricsMiddleware)
		slog.Info("HTTP metrics middleware enabled")
	}

	chain = append(chain, gate.DeferRequests(c.Gate))
	b.middlewares = append(chain, b.middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithGateStatus(c.Gate),
		api.WithMFOptions(
			mf.WithAnnouncer(c.Bridge),
			mf.WithReloadHandler(c.Hub),
			mf.WithEnvironment(c.Environment),
		),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	if b.hostHandler != nil {
		serverOpts = append(serverOpts, api.WithHostHandler(b.hostHandler))
	}

	router := api.NewServer(serverOpts...)

	// WriteTimeout stays zero: it would cut off deferred requests and the
	// live reload sockets.
	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       b.readTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
