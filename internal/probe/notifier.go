package probe

import (
	"context"
	"log/slog"
	"time"
)

// Notifier receives the user-visible milestones of a probe run.
// Implementations must be safe for concurrent use; the gate probes remotes in parallel.
type Notifier interface {
	// Waiting is called once, on the first failed attempt
	Waiting(ctx context.Context, remote, url string, err error)

	// Ready is called once when the remote answers successfully
	Ready(ctx context.Context, remote, url string, attempts int, elapsed time.Duration)

	// GaveUp is called once when the attempt budget is exhausted
	GaveUp(ctx context.Context, remote, url string, attempts int, err error)
}

// LogNotifier reports probe milestones through slog, passing ctx so the
// handler can attach the active span
type LogNotifier struct{}

// Waiting implements Notifier
func (LogNotifier) Waiting(ctx context.Context, remote, url string, err error) {
	slog.InfoContext(ctx, "Waiting for remote app to become ready",
		"remote", remote,
		"url", url,
		"error", err)
}

// Ready implements Notifier
func (LogNotifier) Ready(ctx context.Context, remote, url string, attempts int, elapsed time.Duration) {
	slog.InfoContext(ctx, "Remote app is ready",
		"remote", remote,
		"url", url,
		"attempts", attempts,
		"elapsed_ms", elapsed.Milliseconds())
}

// GaveUp implements Notifier
func (LogNotifier) GaveUp(ctx context.Context, remote, url string, attempts int, err error) {
	slog.WarnContext(ctx, "Remote app did not become ready, continuing anyway",
		"remote", remote,
		"url", url,
		"attempts", attempts,
		"error", err)
}
