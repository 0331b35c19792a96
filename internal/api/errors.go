package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnreachable marks transport-level failures: DNS, refused connections,
// timeouts. The server never saw the request.
var ErrUnreachable = errors.New("backend unreachable")

// AuthError is a credential or token rejection reported by the backend.
// Detail carries the server's own message (e.g. "Incorrect username or
// password") for direct display.
type AuthError struct {
	Detail string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("authentication error: %s", e.Detail)
	}
	return "authentication error"
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Retryable  bool
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API error (%d) at %s: %s (caused by: %v)", e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("API error (%d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
