package apiclient

import (
	"errors"
	"fmt"
)

// ErrMalformedEnvelope matches (via errors.Is) every *MalformedEnvelopeError.
var ErrMalformedEnvelope = errors.New("malformed response envelope")

// BusinessError is returned when the transport succeeded but the envelope code
// is neither 0 nor 200. Error() is the server message alone.
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// MalformedEnvelopeError means a 2xx body was not a valid envelope, or its data
// did not fit the requested type.
type MalformedEnvelopeError struct {
	Method string
	URL    string
	Cause  error
}

func (e *MalformedEnvelopeError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Method, e.URL, ErrMalformedEnvelope, e.Cause)
}

func (e *MalformedEnvelopeError) Unwrap() error { return e.Cause }

func (e *MalformedEnvelopeError) Is(target error) bool { return target == ErrMalformedEnvelope }

// AsBusinessError extracts *BusinessError.
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsUnauthorized reports a business 401, i.e. the session was reset.
func IsUnauthorized(err error) bool {
	be, ok := AsBusinessError(err)
	return ok && be.Code == CodeUnauthorized
}
