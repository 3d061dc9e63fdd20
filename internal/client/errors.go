package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Repository client error types
var (
	ErrTransport       = errors.New("transport failure")
	ErrStaleWrite      = errors.New("session changed on the server")
	ErrUnauthorized    = errors.New("not authenticated")
	ErrForbidden       = errors.New("not permitted")
	ErrNotFound        = errors.New("not found")
	ErrRejected        = errors.New("request rejected")
	ErrInvalidResponse = errors.New("unexpected response from server")
	ErrNoToken         = errors.New("no credential available")
	ErrInvalidBaseURL  = errors.New("api base url must be an absolute http(s) url")
	ErrInvalidToken    = errors.New("credential is not a readable token")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, msg)
}

// Unwrap maps the status code onto the package's sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode >= 500:
		return ErrTransport
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusConflict, e.StatusCode == http.StatusPreconditionFailed:
		return ErrStaleWrite
	default:
		return ErrRejected
	}
}

// IsRetryable reports whether err is a transport failure the caller may retry
// after re-fetching.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Message returns the backend's human-readable message when err carries one.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
