// Package httpclient fetches remote manifest URLs on behalf of the prober
package httpclient

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single request when the caller sets none
	DefaultTimeout = 10 * time.Second

	// MaxDrainSize is how much of a response body is read before the connection is released
	MaxDrainSize = 64 * 1024

	// UserAgent identifies mfgate to remote dev servers
	UserAgent = "mfgate/1.0"
)

// Client issues manifest requests
type Client interface {
	// Get requests url and returns the response status code.
	// Any status outside the 2xx class is reported as an *HTTPError.
	Get(ctx context.Context, url string) (int, error)
}

// DefaultClient is the net/http backed Client. Deadlines travel on the
// request context only, so a caller's deadline is never cut short by the client.
type DefaultClient struct {
	client  *http.Client
	timeout time.Duration
}

// NewDefaultClient returns a Client whose requests time out after timeout
// when the caller's context carries no deadline. Zero means DefaultTimeout.
func NewDefaultClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DefaultClient{client: &http.Client{}, timeout: timeout}
}

// Timeout reports the limit applied to requests without a deadline
func (c *DefaultClient) Timeout() time.Duration {
	return c.timeout
}

// Get fetches url, discarding the body
func (c *DefaultClient) Get(ctx context.Context, url string) (int, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	// A bounded drain lets the keep-alive connection be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxDrainSize))
	_ = resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return resp.StatusCode, NewHTTPError(resp.StatusCode, url, resp.Status)
	}
	return resp.StatusCode, nil
}

// IsSuccess reports whether status is in the 2xx class
func IsSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
