// Package probe checks that a remote application is serving its manifest.
//
// A probe issues one GET per attempt against a remote's manifest URL and
// retries until the remote answers with a 2xx status or the attempt budget is
// exhausted. Probing never fails loudly: the outcome is reported as a Result
// that is either Ready or Unreachable.
//
// # Retry policy
//
// Every attempt is bounded by its own timeout, independent of the overall
// budget. Between attempts the Prober sleeps for the delay returned by a
// backoff.BackOff policy (constant by default). A policy returning
// backoff.Stop ends the run early.
//
// # Notifications
//
// A Notifier is told exactly once when a remote first fails ("waiting"),
// once when it becomes ready, and once when the prober gives up on it.
// Intermediate failures are logged at debug level only.
//
// # Testing
//
// The Clock dependency lets tests drive the retry loop without real delays.
// FakeClock and RecordingNotifier in testutils.go serve that purpose.
package probe
