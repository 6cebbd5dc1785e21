package probe

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a Clock for tests. Sleep returns immediately and advances the
// virtual time by the requested duration.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFakeClock creates a FakeClock starting at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements Clock
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Sleeps returns every duration passed to Sleep, in call order
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// RecordingNotifier records notifications for assertions
type RecordingNotifier struct {
	mu      sync.Mutex
	waiting []string
	ready   []string
	gaveUp  []string
}

// Waiting implements Notifier
func (n *RecordingNotifier) Waiting(_ context.Context, remote, _ string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waiting = append(n.waiting, remote)
}

// Ready implements Notifier
func (n *RecordingNotifier) Ready(_ context.Context, remote, _ string, _ int, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = append(n.ready, remote)
}

// GaveUp implements Notifier
func (n *RecordingNotifier) GaveUp(_ context.Context, remote, _ string, _ int, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gaveUp = append(n.gaveUp, remote)
}

// WaitingFor returns the remotes that received a Waiting notification
func (n *RecordingNotifier) WaitingFor() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.waiting...)
}

// ReadyFor returns the remotes that received a Ready notification
func (n *RecordingNotifier) ReadyFor() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ready...)
}

// GaveUpOn returns the remotes that received a GaveUp notification
func (n *RecordingNotifier) GaveUpOn() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.gaveUp...)
}
