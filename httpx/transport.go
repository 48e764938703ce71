package httpx

import (
	"net"
	"net/http"
	"time"
)

// DefaultTransport returns a clone of http.DefaultTransport with bounded dial
// and TLS handshakes and a larger idle pool for the single API host.
//
// It sets no ResponseHeaderTimeout: the client timeout, applied through the
// request context, is the only bound on waiting for a response.
func DefaultTransport() *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{}
	}
	t := base.Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.TLSHandshakeTimeout = 5 * time.Second
	t.ExpectContinueTimeout = time.Second
	t.IdleConnTimeout = 90 * time.Second
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 32
	t.ForceAttemptHTTP2 = true
	return t
}
