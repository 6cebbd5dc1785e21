package probe

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mfstack/mfgate/internal/httpclient"
)

// FailureClass categorises a failed attempt
type FailureClass string

const (
	// FailureTimeout means the attempt exceeded its per-attempt timeout
	FailureTimeout FailureClass = "timeout"

	// FailureTransport means the request never produced a response
	FailureTransport FailureClass = "transport_error"

	// FailureHTTPStatus means the remote answered outside the 2xx class
	FailureHTTPStatus FailureClass = "http_error"
)

// resultSuccess is the attempt result label used for metrics
const resultSuccess = "success"

// AttemptError describes a single failed attempt. It is carried in
// Result.LastError and never returned to callers of Probe.
type AttemptError struct {
	Remote  string
	URL     string
	Attempt int
	Class   FailureClass
	Err     error
}

// Error returns the error message
func (e *AttemptError) Error() string {
	return fmt.Sprintf("probe %s attempt %d (%s): %v", e.Remote, e.Attempt, e.Class, e.Err)
}

// Unwrap returns the underlying error
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Classify maps an attempt error to its failure class
func Classify(err error) FailureClass {
	if httpclient.StatusCode(err) != 0 {
		return FailureHTTPStatus
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	return FailureTransport
}
