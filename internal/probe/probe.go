package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/httpclient"
	"github.com/mfstack/mfgate/internal/otel"
	"github.com/mfstack/mfgate/internal/telemetry"
)

const (
	// DefaultMaxAttempts is the attempt budget used by the dev host
	DefaultMaxAttempts = 30

	// StandaloneMaxAttempts is the attempt budget used by the standalone waiter
	StandaloneMaxAttempts = 60

	// DefaultRetryDelay is the pause between attempts
	DefaultRetryDelay = time.Second

	// DefaultAttemptTimeout bounds a single attempt
	DefaultAttemptTimeout = time.Second

	// TracerName is the name used for probe spans
	TracerName = "github.com/mfstack/mfgate/probe"
)

// Outcome is the terminal result of a probe run
type Outcome int

const (
	// Unreachable means the attempt budget ran out without a successful answer
	Unreachable Outcome = iota
	// Ready means the remote answered with a 2xx status
	Ready
)

// String returns the outcome name
func (o Outcome) String() string {
	if o == Ready {
		return "ready"
	}
	return "unreachable"
}

// Result is the outcome of one probe run against one remote
type Result struct {
	RemoteName string
	URL        string
	Outcome    Outcome
	Attempts   int
	Elapsed    time.Duration
	// LastError is the *AttemptError of the final failed attempt; nil when Ready
	LastError error
}

// ElapsedMs returns the elapsed time in milliseconds
func (r Result) ElapsedMs() int64 {
	return r.Elapsed.Milliseconds()
}

// settings are the per-run knobs. Prober holds defaults; Options override per call.
type settings struct {
	maxAttempts    int
	retryDelay     time.Duration
	attemptTimeout time.Duration
	newBackOff     func() backoff.BackOff
}

// Option overrides a probe setting for a single run
type Option func(*settings)

// WithMaxAttempts sets the total number of attempts, including the first
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		s.maxAttempts = n
	}
}

// WithRetryDelay sets the pause between attempts for the default constant policy
func WithRetryDelay(d time.Duration) Option {
	return func(s *settings) {
		s.retryDelay = d
	}
}

// WithAttemptTimeout sets the timeout of each individual attempt
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.attemptTimeout = d
	}
}

// WithBackOff replaces the delay policy. newPolicy is called once per run, so
// stateful policies such as backoff.ExponentialBackOff are never shared.
func WithBackOff(newPolicy func() backoff.BackOff) Option {
	return func(s *settings) {
		s.newBackOff = newPolicy
	}
}

// Prober runs manifest probes. It holds no per-run state and is safe for concurrent use.
type Prober struct {
	client   httpclient.Client
	clock    Clock
	notifier Notifier
	metrics  *telemetry.ProbeMetrics
	tracer   trace.Tracer
	defaults settings
}

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithClock sets the clock used for sleeping and measuring elapsed time
func WithClock(clock Clock) ProberOption {
	return func(p *Prober) {
		p.clock = clock
	}
}

// WithNotifier sets the notifier that receives probe milestones
func WithNotifier(n Notifier) ProberOption {
	return func(p *Prober) {
		p.notifier = n
	}
}

// WithMetrics sets the probe metrics. Nil disables metrics.
func WithMetrics(m *telemetry.ProbeMetrics) ProberOption {
	return func(p *Prober) {
		p.metrics = m
	}
}

// WithTracerProvider enables a span per probe run
func WithTracerProvider(tp trace.TracerProvider) ProberOption {
	return func(p *Prober) {
		if tp != nil {
			p.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithDefaults sets the settings applied to every run before per-call options
func WithDefaults(opts ...Option) ProberOption {
	return func(p *Prober) {
		for _, opt := range opts {
			opt(&p.defaults)
		}
	}
}

// New creates a Prober that issues requests through client
func New(client httpclient.Client, opts ...ProberOption) *Prober {
	p := &Prober{
		client:   client,
		clock:    RealClock(),
		notifier: LogNotifier{},
		defaults: settings{
			maxAttempts:    DefaultMaxAttempts,
			retryDelay:     DefaultRetryDelay,
			attemptTimeout: DefaultAttemptTimeout,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe checks a remote endpoint's manifest URL
func (p *Prober) Probe(ctx context.Context, remote environment.RemoteEndpoint, opts ...Option) Result {
	return p.ProbeURL(ctx, remote.Name, remote.ManifestURL, opts...)
}

// ProbeURL polls url until it answers with a 2xx status or the attempt budget
// is exhausted. It never returns an error; failures fold into an Unreachable
// Result. Cancelling ctx ends the run as Unreachable and is meant for shutdown.
func (p *Prober) ProbeURL(ctx context.Context, name, url string, opts ...Option) Result {
	s := p.defaults
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}

	var policy backoff.BackOff
	if s.newBackOff != nil {
		policy = s.newBackOff()
	} else {
		policy = backoff.NewConstantBackOff(s.retryDelay)
	}
	policy.Reset()

	ctx, span := otel.StartSpan(ctx, p.tracer, "probe.ProbeURL",
		trace.WithAttributes(
			otel.AttrRemoteName.String(name),
			otel.AttrManifestURL.String(url),
		),
	)
	defer span.End()

	start := p.clock.Now()
	result := Result{RemoteName: name, URL: url, Outcome: Unreachable}

	for result.Attempts < s.maxAttempts {
		result.Attempts++

		err := p.attempt(ctx, url, s.attemptTimeout)
		if err == nil {
			p.metrics.RecordAttempt(ctx, name, resultSuccess)
			result.Outcome = Ready
			result.LastError = nil
			break
		}

		attemptErr := &AttemptError{
			Remote:  name,
			URL:     url,
			Attempt: result.Attempts,
			Class:   Classify(err),
			Err:     err,
		}
		result.LastError = attemptErr
		p.metrics.RecordAttempt(ctx, name, string(attemptErr.Class))

		if result.Attempts == 1 {
			p.notifier.Waiting(ctx, name, url, attemptErr)
		} else {
			slog.DebugContext(ctx, "Remote app not ready yet",
				"remote", name,
				"attempt", result.Attempts,
				"max_attempts", s.maxAttempts,
				"class", attemptErr.Class)
		}

		if result.Attempts >= s.maxAttempts {
			break
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			slog.DebugContext(ctx, "Backoff policy stopped retries", "remote", name, "attempts", result.Attempts)
			break
		}

		if err := p.clock.Sleep(ctx, delay); err != nil {
			slog.DebugContext(ctx, "Probe interrupted", "remote", name, "error", err)
			break
		}
	}

	result.Elapsed = p.clock.Now().Sub(start)
	p.metrics.RecordProbeDuration(ctx, name, result.Elapsed, result.Outcome == Ready)

	span.SetAttributes(
		otel.AttrAttempts.Int(result.Attempts),
		otel.AttrOutcome.String(result.Outcome.String()),
	)

	if result.Outcome == Ready {
		p.notifier.Ready(ctx, name, url, result.Attempts, result.Elapsed)
	} else {
		otel.RecordError(span, result.LastError)
		p.notifier.GaveUp(ctx, name, url, result.Attempts, result.LastError)
	}

	return result
}

// attempt performs one bounded GET. A non-2xx status is a failure even when
// the client reports no error.
func (p *Prober) attempt(ctx context.Context, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	status, err := p.client.Get(ctx, url)
	if err != nil {
		return err
	}
	if !httpclient.IsSuccess(status) {
		return httpclient.NewHTTPError(status, url, "unexpected status")
	}
	return nil
}
