package httpx

import (
	"net/http"
	"time"
)

// Config configures a Client. Use DefaultConfig() as a baseline.
type Config struct {
	// BaseURL is optional. If set, relative paths passed to NewRequest are resolved against it.
	// It may be absolute ("https://host/api") or a bare path prefix ("/api"); the latter
	// requires Origin.
	BaseURL string

	// Origin is the scheme and host a path-only BaseURL is resolved against,
	// e.g. "http://localhost:8080". Ignored when BaseURL is absolute.
	Origin string

	// Timeout sets an upper bound for the whole request.
	// If the request context already has a deadline, the earlier one wins.
	Timeout time.Duration

	// Transport is the underlying RoundTripper. If nil, a tuned default is used.
	Transport http.RoundTripper

	// Jar stores cookies between requests. Nil disables cookie handling.
	Jar http.CookieJar

	// DefaultHeaders are copied into every request (caller headers win).
	DefaultHeaders http.Header

	// UserAgent is set when the request does not already have a User-Agent header.
	UserAgent string

	// MaxErrorBodyBytes limits how many bytes are read into Error.RawBody for non-2xx responses.
	// If zero, DefaultMaxErrorBodyBytes is used.
	MaxErrorBodyBytes int64

	// RequestID configures correlation id propagation.
	RequestID RequestIDConfig
}

const (
	DefaultMaxErrorBodyBytes int64 = 64 << 10 // 64KiB

	DefaultTimeout = 10 * time.Second
)

// DefaultConfig returns a conservative baseline: JSON content type, 10s timeout.
func DefaultConfig() Config {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return Config{
		Timeout:           DefaultTimeout,
		Transport:         DefaultTransport(),
		DefaultHeaders:    h,
		MaxErrorBodyBytes: DefaultMaxErrorBodyBytes,
		RequestID:         DefaultRequestIDConfig(),
	}
}
