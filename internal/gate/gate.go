// Package gate combines concurrent manifest probes into a single readiness
// signal and defers HTTP requests until that signal settles.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/otel"
	"github.com/mfstack/mfgate/internal/probe"
	"github.com/mfstack/mfgate/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks -source=gate.go Prober

// TracerName is the name used for gate spans
const TracerName = "github.com/mfstack/mfgate/gate"

// ErrAlreadyStarted is returned when Start is called more than once
var ErrAlreadyStarted = errors.New("readiness gate already started")

// Prober probes a single remote
type Prober interface {
	Probe(ctx context.Context, remote environment.RemoteEndpoint, opts ...probe.Option) probe.Result
}

// Gate runs one probe per remote concurrently and settles exactly once into
// Ready or Degraded. Every waiter observes the same terminal state.
type Gate struct {
	prober    Prober
	remotes   []environment.RemoteEndpoint
	probeOpts []probe.Option
	metrics   *telemetry.GateMetrics
	tracer    trace.Tracer
	now       func() time.Time

	started atomic.Bool
	phase   atomic.Int32

	// state and results are written once, before done is closed
	done    chan struct{}
	state   State
	results []probe.Result
}

// Option configures a Gate
type Option func(*Gate)

// WithProbeOptions sets the options passed to every probe run
func WithProbeOptions(opts ...probe.Option) Option {
	return func(g *Gate) {
		g.probeOpts = append(g.probeOpts, opts...)
	}
}

// WithMetrics sets the gate metrics. Nil disables metrics.
func WithMetrics(m *telemetry.GateMetrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithTracerProvider enables a span covering the probing phase
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gate) {
		if tp != nil {
			g.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithClock sets the clock used to measure settle duration
func WithClock(clock probe.Clock) Option {
	return func(g *Gate) {
		g.now = clock.Now
	}
}

// New creates a gate over the given remotes. Probing starts with Start.
func New(prober Prober, remotes []environment.RemoteEndpoint, opts ...Option) *Gate {
	g := &Gate{
		prober:  prober,
		remotes: slices.Clone(remotes),
		now:     time.Now,
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Start launches the probes and returns without waiting for them. ctx bounds
// the probes and should live as long as the process. A gate with no remotes
// settles Ready before Start returns. Calling Start again returns
// ErrAlreadyStarted and leaves the running or settled state untouched.
func (g *Gate) Start(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		slog.ErrorContext(ctx, "Readiness gate started more than once; ignoring", "state", g.State().String())
		return ErrAlreadyStarted
	}

	g.phase.Store(int32(Probing))
	start := g.now()

	if len(g.remotes) == 0 {
		g.settle(ctx, nil, start)
		return nil
	}

	slog.InfoContext(ctx, "Probing remote apps", "remotes", len(g.remotes))
	go g.run(ctx, start)
	return nil
}

func (g *Gate) run(ctx context.Context, start time.Time) {
	ctx, span := otel.StartSpan(ctx, g.tracer, "gate.Probe",
		trace.WithAttributes(otel.AttrRemoteCount.Int(len(g.remotes))),
	)
	defer span.End()

	results := make([]probe.Result, len(g.remotes))

	// Probe failures are folded into results; no goroutine returns an error,
	// so one unreachable remote never cuts another's budget short.
	var eg errgroup.Group
	for i, remote := range g.remotes {
		eg.Go(func() error {
			results[i] = g.prober.Probe(ctx, remote, g.probeOpts...)
			return nil
		})
	}
	_ = eg.Wait()

	state := g.settle(ctx, results, start)
	span.SetAttributes(otel.AttrGateState.String(state.String()))
}

// settle publishes the terminal state. It runs exactly once.
func (g *Gate) settle(ctx context.Context, results []probe.Result, start time.Time) State {
	state := Ready
	var unreachable []string
	for _, r := range results {
		if r.Outcome != probe.Ready {
			state = Degraded
			unreachable = append(unreachable, r.RemoteName)
		}
	}

	elapsed := g.now().Sub(start)

	g.state = state
	g.results = results
	g.phase.Store(int32(state))
	close(g.done)

	g.metrics.RecordSettled(ctx, state.String(), elapsed, len(results)-len(unreachable), len(unreachable))

	if state == Ready {
		slog.InfoContext(ctx, "All remote apps are ready",
			"remotes", len(results),
			"elapsed_ms", elapsed.Milliseconds())
	} else {
		slog.WarnContext(ctx, "Some remote apps are unreachable, serving in degraded mode",
			"unreachable", unreachable,
			"elapsed_ms", elapsed.Milliseconds())
	}

	return state
}

// Wait blocks until the gate settles and returns the terminal state. It
// returns an error only when ctx ends first, together with the current state.
// Waiting before Start blocks until Start is called and the gate settles.
func (g *Gate) Wait(ctx context.Context) (State, error) {
	select {
	case <-g.done:
		return g.state, nil
	default:
	}

	select {
	case <-g.done:
		return g.state, nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

// Done returns a channel that is closed once the gate has settled
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// State returns the current phase without blocking
func (g *Gate) State() State {
	return State(g.phase.Load())
}

// Results returns the per-remote results once settled, nil before that
func (g *Gate) Results() []probe.Result {
	select {
	case <-g.done:
		return slices.Clone(g.results)
	default:
		return nil
	}
}

// Remotes returns the remotes the gate probes
func (g *Gate) Remotes() []environment.RemoteEndpoint {
	return slices.Clone(g.remotes)
}
