package client

import (
	"errors"
	"fmt"
)

// ErrAuthExpired marks a 401 response. The session has already been cleared when it is returned.
var ErrAuthExpired = errors.New("authentication expired, please log in again")

// StatusError is a non-2xx response. The body is kept so callers can read the portal's envelope.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s %s", e.StatusCode, e.Method, e.URL)
}

// Is lets errors.Is(err, ErrAuthExpired) match 401 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrAuthExpired && e.StatusCode == 401
}

// TransportError is a failure to get any response: connection refused, TLS, timeout.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send request %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
