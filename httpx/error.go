package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Error represents an HTTP status or transport failure with observability-friendly fields.
type Error struct {
	Method string
	URL    string

	// StatusCode is the HTTP status code. It is 0 when the request failed before receiving a response.
	StatusCode int

	// RequestID is extracted from the configured RequestID header (see RequestIDConfig).
	RequestID string

	// RawBody is a truncated copy of the response body (only for non-2xx responses).
	RawBody []byte

	// Cause is the underlying error (transport error, context deadline, status text).
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if m := strings.TrimSpace(e.Method); m != "" {
		b.WriteString(strings.ToUpper(m))
		b.WriteString(" ")
	}
	if u := strings.TrimSpace(e.URL); u != "" {
		b.WriteString(u)
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		b.WriteString(fmt.Sprintf("http %d", e.StatusCode))
		if t := strings.TrimSpace(http.StatusText(e.StatusCode)); t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
	} else {
		b.WriteString("request failed")
	}
	if e.RequestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(e.RequestID)
	}
	if e.Cause != nil && e.StatusCode == 0 {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Timeout reports whether the request ran out of time (client timeout or context deadline).
func (e *Error) Timeout() bool {
	if e == nil || e.Cause == nil {
		return false
	}
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Cause, &ne) && ne.Timeout()
}

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

func IsHTTPStatus(err error, code int) bool {
	he, ok := AsError(err)
	return ok && he.StatusCode == code
}

// DecodeError reports a 2xx response whose body could not be decoded.
// The transport succeeded, so it never matches AsError.
type DecodeError struct {
	Method     string
	URL        string
	StatusCode int
	Cause      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response (http %d): %v", e.Method, e.URL, e.StatusCode, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
