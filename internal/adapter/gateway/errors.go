package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx provider response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may help: 5xx, 408 and 429.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// TransportError is a network failure, timeout or open circuit.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "provider unreachable: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Temporary() bool { return true }

// DecodeError is an unreadable provider response.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode provider response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Temporary() bool { return false }

// Temporary reports whether err is worth retrying.
func Temporary(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}
