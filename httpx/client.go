package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	httpClient *http.Client

	baseURL *url.URL

	timeout        time.Duration
	defaultHeaders http.Header
	userAgent      string

	maxErrBody int64

	requestID RequestIDConfig

	before []BeforeHook
	after  []AfterHook
}

// New constructs a Client from DefaultConfig() plus the provided options.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Client, error) {
	bu, err := parseBaseURL(cfg.BaseURL, cfg.Origin)
	if err != nil {
		return nil, err
	}

	rt := cfg.Transport
	if rt == nil {
		rt = DefaultTransport()
	}

	hc := &http.Client{
		Transport: rt,
		Jar:       cfg.Jar,
	}

	maxErrBody := cfg.MaxErrorBodyBytes
	if maxErrBody == 0 {
		maxErrBody = DefaultMaxErrorBodyBytes
	}

	hdr := make(http.Header)
	copyHeader(hdr, cfg.DefaultHeaders)

	c := &Client{
		httpClient:     hc,
		baseURL:        bu,
		timeout:        cfg.Timeout,
		defaultHeaders: hdr,
		userAgent:      cfg.UserAgent,
		maxErrBody:     maxErrBody,
		requestID:      cfg.RequestID,
	}
	if c.requestID.New == nil && c.requestID.Header != "" {
		c.requestID.New = DefaultRequestID
	}
	return c, nil
}

// parseBaseURL accepts an absolute base or a path prefix joined onto origin.
func parseBaseURL(base, origin string) (*url.URL, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			return nil, &url.Error{Op: "parse", URL: base, Err: errors.New("relative base url requires an origin")}
		}
		o, err := url.Parse(origin)
		if err != nil {
			return nil, err
		}
		if o.Scheme == "" || o.Host == "" {
			return nil, &url.Error{Op: "parse", URL: origin, Err: errors.New("origin must be absolute")}
		}
		u = o.ResolveReference(&url.URL{Path: "/" + strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery})
	}
	// Normalize so relative paths resolve as expected (treat BaseURL path as a prefix).
	if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// WithMiddleware wraps the underlying RoundTripper with middleware.
// Call this during initialization (before the client is used concurrently).
func (c *Client) WithMiddleware(mws ...Middleware) *Client {
	if len(mws) == 0 {
		return c
	}
	rt := c.httpClient.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.httpClient.Transport = chain(rt, mws)
	return c
}

// WithHooks adds hooks (executed for every send).
// Call this during initialization (before the client is used concurrently).
func (c *Client) WithHooks(before []BeforeHook, after []AfterHook) *Client {
	c.before = append(c.before, before...)
	c.after = append(c.after, after...)
	return c
}

// BaseURL returns a copy of the resolved base URL, or nil.
func (c *Client) BaseURL() *url.URL {
	if c.baseURL == nil {
		return nil
	}
	u := *c.baseURL
	return &u
}

func (c *Client) resolveURL(path string, q url.Values) (*url.URL, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty url/path")
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		if c.baseURL == nil {
			return nil, errors.New("relative path requires BaseURL")
		}
		// Treat leading "/" as relative to BaseURL, so "/users" lands under "https://host/api/".
		if strings.HasPrefix(u.Path, "/") {
			u2 := *u
			u2.Path = strings.TrimPrefix(u2.Path, "/")
			u = &u2
		}
		u = c.baseURL.ResolveReference(u)
	} else {
		u2 := *u
		u = &u2
	}
	if q != nil {
		qq := u.Query()
		for k, vv := range q {
			for _, v := range vv {
				qq.Add(k, v)
			}
		}
		u.RawQuery = qq.Encode()
	}
	return u, nil
}

func withEarlierDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return ctx, func() {}
	}
	if existing, ok := ctx.Deadline(); ok && !existing.After(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

func earliestDeadline(base context.Context, timeouts ...time.Duration) (time.Time, bool) {
	now := time.Now()
	var earliest time.Time
	for _, d := range timeouts {
		if d <= 0 {
			continue
		}
		dd := now.Add(d)
		if earliest.IsZero() || dd.Before(earliest) {
			earliest = dd
		}
	}
	if dl, ok := base.Deadline(); ok {
		if earliest.IsZero() || dl.Before(earliest) {
			earliest = dl
		}
	}
	if earliest.IsZero() {
		return time.Time{}, false
	}
	return earliest, true
}

// Do executes the request once. It mirrors net/http semantics:
// - transport errors are returned as error
// - non-2xx responses are returned as resp with nil error
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, false)
}

// DoStatus executes the request and converts transport failures and non-2xx responses into *Error.
// For non-2xx it reads up to MaxErrorBodyBytes from the response body and then closes it.
func (c *Client) DoStatus(req *http.Request) (*http.Response, error) {
	return c.do(req, true)
}

func (c *Client) do(req *http.Request, statusAsError bool) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	ctx := req.Context()
	if dl, ok := earliestDeadline(ctx, c.timeout, requestTimeout(ctx)); ok {
		ctx2, cancel := withEarlierDeadline(ctx, dl)
		ctx = ctx2
		// The deadline must outlive Do: callers read the body afterwards.
		defer func() {
			if cancel != nil {
				cancel()
			}
		}()
		req = req.Clone(ctx)
		resp, err := c.send(req, statusAsError)
		if err == nil && resp != nil && resp.Body != nil {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			cancel = nil
		}
		return resp, err
	}
	return c.send(req, statusAsError)
}

func (c *Client) send(req *http.Request, statusAsError bool) (*http.Response, error) {
	for _, h := range c.before {
		if h == nil {
			continue
		}
		if err := h(req); err != nil {
			return nil, err
		}
	}

	t0 := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(t0)

	for _, h := range c.after {
		if h != nil {
			h(req, resp, err, dur)
		}
	}

	if !statusAsError {
		return resp, err
	}
	if err != nil {
		// http.Client may return a non-nil resp alongside an error (e.g. redirect issues).
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, &Error{
			Method:    req.Method,
			URL:       req.URL.String(),
			RequestID: strings.TrimSpace(req.Header.Get(c.requestID.Header)),
			Cause:     err,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseToError(req, resp, c.requestID.Header, c.maxErrBody)
	}
	return resp, nil
}

func responseToError(req *http.Request, resp *http.Response, requestIDHeader string, maxErrBody int64) (*http.Response, error) {
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	var raw []byte
	if resp.Body != nil && maxErrBody > 0 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		raw = b
	}

	// Expose the captured bytes to the caller (debuggability) but avoid holding open sockets.
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	rid := ""
	if requestIDHeader != "" {
		rid = strings.TrimSpace(resp.Header.Get(requestIDHeader))
		if rid == "" {
			rid = strings.TrimSpace(req.Header.Get(requestIDHeader))
		}
	}

	return resp, &Error{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		RequestID:  rid,
		RawBody:    raw,
		Cause:      errors.New(http.StatusText(resp.StatusCode)),
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
