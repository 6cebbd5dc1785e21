package httpclient_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfstack/mfgate/internal/httpclient"
)

func TestHTTPError_Message(t *testing.T) {
	t.Parallel()

	err := httpclient.NewHTTPError(http.StatusServiceUnavailable,
		"http://localhost:3002/mf-manifest.json", "503 Service Unavailable")
	assert.Equal(t,
		"unexpected status 503 from http://localhost:3002/mf-manifest.json: 503 Service Unavailable",
		err.Error())
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "direct",
			err:  httpclient.NewHTTPError(http.StatusNotFound, "http://localhost:3003/mf-manifest.json", "404 Not Found"),
			want: http.StatusNotFound,
		},
		{
			name: "wrapped",
			err: fmt.Errorf("attempt 2: %w",
				httpclient.NewHTTPError(http.StatusBadGateway, "http://localhost:12000/mf-manifest.json", "502 Bad Gateway")),
			want: http.StatusBadGateway,
		},
		{
			name: "transport error",
			err:  errors.New("connection refused"),
			want: 0,
		},
		{
			name: "nil",
			err:  nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, httpclient.StatusCode(tt.err))
		})
	}
}
