package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestOption adjusts a single request built by NewRequest or NewJSONRequest.
type RequestOption func(*requestSettings)

type requestSettings struct {
	header  http.Header
	query   url.Values
	timeout time.Duration

	// body is nil when the request has none.
	body    []byte
	bodyErr error
	json    bool
}

// WithHeader adds a header value. Request headers replace default headers of the same name.
func WithHeader(key, value string) RequestOption {
	return func(s *requestSettings) {
		if s.header == nil {
			s.header = make(http.Header)
		}
		s.header.Add(key, value)
	}
}

// WithQuery appends values to the query string of the resolved URL.
func WithQuery(values url.Values) RequestOption {
	return func(s *requestSettings) {
		for k, vv := range values {
			for _, v := range vv {
				WithQueryParam(k, v)(s)
			}
		}
	}
}

func WithQueryParam(key, value string) RequestOption {
	return func(s *requestSettings) {
		if s.query == nil {
			s.query = make(url.Values)
		}
		s.query.Add(key, value)
	}
}

// WithRequestTimeout bounds this request only. The client timeout and any
// deadline already on the context still apply; the earliest wins.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(s *requestSettings) { s.timeout = d }
}

// WithJSON encodes v as the request body. A nil v sends no body.
func WithJSON(v any) RequestOption {
	return func(s *requestSettings) {
		s.json = true
		s.body, s.bodyErr = nil, nil
		if v == nil {
			return
		}
		s.body, s.bodyErr = json.Marshal(v)
	}
}

func (s *requestSettings) reader() io.Reader {
	if s.body == nil {
		return nil
	}
	// NewRequestWithContext sets ContentLength and GetBody for *bytes.Reader.
	return bytes.NewReader(s.body)
}

type timeoutKey struct{}

func requestTimeout(ctx context.Context) time.Duration {
	d, _ := ctx.Value(timeoutKey{}).(time.Duration)
	return d
}

// NewRequest resolves path against the base URL and applies default headers,
// the user agent and a request id before opts.
func (c *Client) NewRequest(ctx context.Context, method, path string, opts ...RequestOption) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rs requestSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&rs)
		}
	}
	if rs.bodyErr != nil {
		return nil, fmt.Errorf("httpx: encode body: %w", rs.bodyErr)
	}

	u, err := c.resolveURL(path, rs.query)
	if err != nil {
		return nil, err
	}
	if rs.timeout > 0 {
		ctx = context.WithValue(ctx, timeoutKey{}, rs.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u.String(), rs.reader())
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req.Header, &rs)
	return req, nil
}

func (c *Client) applyHeaders(h http.Header, rs *requestSettings) {
	copyHeader(h, c.defaultHeaders)
	for k, vv := range rs.header {
		h[k] = append([]string(nil), vv...)
	}
	if rs.json {
		setIfMissing(h, "Content-Type", "application/json")
	}
	setIfMissing(h, "User-Agent", c.userAgent)
	if rid := c.requestID; rid.Header != "" && rid.New != nil && h.Get(rid.Header) == "" {
		setIfMissing(h, rid.Header, strings.TrimSpace(rid.New()))
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func setIfMissing(h http.Header, key, value string) {
	if value != "" && h.Get(key) == "" {
		h.Set(key, value)
	}
}
