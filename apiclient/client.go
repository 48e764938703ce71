package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lgc202/apikit/httpx"
	"github.com/lgc202/apikit/storage"
)

// Config is read once when the Client is built.
type Config struct {
	// BaseURL is absolute or a path prefix such as "/api" (then Origin is required).
	BaseURL string
	Origin  string
	Timeout time.Duration

	UserAgent string

	// Headers are sent with every call; per-call WithHeader values replace them.
	Headers http.Header

	// RequestIDHeader carries a generated UUID per call. Defaults to X-Request-ID.
	RequestIDHeader string

	// Cookies keeps cookies set by the API between calls.
	Cookies bool

	TokenKey     string
	LoginRoute   string
	LoadingTitle string

	DefaultMessage string
	NetworkMessage string
	// StatusMessages replaces DefaultStatusMessages when non-nil.
	StatusMessages map[int]string
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         "/api",
		Origin:          "http://localhost",
		Timeout:         httpx.DefaultTimeout,
		RequestIDHeader: "X-Request-ID",
		TokenKey:        "token",
		LoginRoute:      "/pages/login/login",
		LoadingTitle:    "Loading...",
		DefaultMessage:  DefaultErrorMessage,
		NetworkMessage:  DefaultNetworkMessage,
		StatusMessages:  DefaultStatusMessages(),
	}
}

// withDefaults fills every empty field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = d.BaseURL
	}
	if strings.TrimSpace(c.Origin) == "" {
		c.Origin = d.Origin
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RequestIDHeader == "" {
		c.RequestIDHeader = d.RequestIDHeader
	}
	if c.TokenKey == "" {
		c.TokenKey = d.TokenKey
	}
	if c.LoginRoute == "" {
		c.LoginRoute = d.LoginRoute
	}
	if c.LoadingTitle == "" {
		c.LoadingTitle = d.LoadingTitle
	}
	if c.DefaultMessage == "" {
		c.DefaultMessage = d.DefaultMessage
	}
	if c.NetworkMessage == "" {
		c.NetworkMessage = d.NetworkMessage
	}
	if c.StatusMessages == nil {
		c.StatusMessages = d.StatusMessages
	}
	return c
}

type Option func(*Client)

func WithStorage(s Storage) Option {
	return func(c *Client) {
		if s != nil {
			c.storage = s
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		if n != nil {
			c.navigator = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRequestInterceptors appends interceptors after the built-in auth interceptor.
func WithRequestInterceptors(ris ...RequestInterceptor) Option {
	return func(c *Client) { c.extraReq = append(c.extraReq, ris...) }
}

// WithResponseInterceptors appends interceptors after the built-in business and network ones.
func WithResponseInterceptors(ris ...ResponseInterceptor) Option {
	return func(c *Client) { c.extraResp = append(c.extraResp, ris...) }
}

// WithoutDefaultInterceptors leaves only interceptors added through options.
func WithoutDefaultInterceptors() Option {
	return func(c *Client) { c.noDefaults = true }
}

// WithHTTPOptions passes extra options to the underlying httpx.Client.
func WithHTTPOptions(opts ...httpx.Option) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, opts...) }
}

// Client owns one httpx.Client and the interceptor chain around it.
type Client struct {
	http *httpx.Client
	cfg  Config

	storage   Storage
	notifier  Notifier
	navigator Navigator
	log       zerolog.Logger
	errs      *ErrorHandler

	reqInterceptors  []RequestInterceptor
	respInterceptors []ResponseInterceptor

	// option scratch space, consumed by New
	extraReq   []RequestInterceptor
	extraResp  []ResponseInterceptor
	noDefaults bool
	httpOpts   []httpx.Option
}

func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:       cfg.withDefaults(),
		storage:   storage.NewMemory(),
		notifier:  nopNotifier{},
		navigator: nopNavigator{},
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}

	hopts := []httpx.Option{
		httpx.WithBaseURL(c.cfg.BaseURL),
		httpx.WithOrigin(c.cfg.Origin),
		httpx.WithTimeout(c.cfg.Timeout),
		httpx.WithDefaultHeader("Content-Type", "application/json"),
		httpx.WithDefaultHeaders(c.cfg.Headers),
		httpx.WithRequestID(httpx.RequestIDConfig{Header: c.cfg.RequestIDHeader, New: httpx.DefaultRequestID}),
	}
	if c.cfg.UserAgent != "" {
		hopts = append(hopts, httpx.WithUserAgent(c.cfg.UserAgent))
	}
	if c.cfg.Cookies {
		hopts = append(hopts, httpx.WithCookies())
	}
	hc, err := httpx.New(append(hopts, c.httpOpts...)...)
	if err != nil {
		return nil, err
	}
	hc.WithHooks(nil, []httpx.AfterHook{c.logRoundTrip})
	c.http = hc

	c.errs = &ErrorHandler{
		Notifier:       c.notifier,
		Navigator:      c.navigator,
		Storage:        c.storage,
		TokenKey:       c.cfg.TokenKey,
		LoginRoute:     c.cfg.LoginRoute,
		DefaultMessage: c.cfg.DefaultMessage,
		NetworkMessage: c.cfg.NetworkMessage,
		StatusMessages: c.cfg.StatusMessages,
		Log:            c.log,
	}
	if !c.noDefaults {
		c.reqInterceptors = append(c.reqInterceptors, AuthInterceptor(c.storage, c.cfg.TokenKey))
		c.respInterceptors = append(c.respInterceptors, BusinessInterceptor(c.errs), NetworkInterceptor(c.errs))
	}
	c.reqInterceptors = append(c.reqInterceptors, c.extraReq...)
	c.respInterceptors = append(c.respInterceptors, c.extraResp...)
	c.extraReq, c.extraResp, c.httpOpts = nil, nil, nil
	return c, nil
}

// HTTP returns the underlying client for calls that do not follow the envelope contract.
func (c *Client) HTTP() *httpx.Client { return c.http }

// ErrorHandler returns the handler used by the built-in interceptors,
// for callers composing their own chain.
func (c *Client) ErrorHandler() *ErrorHandler { return c.errs }

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

func (c *Client) logRoundTrip(req *http.Request, resp *http.Response, err error, dur time.Duration) {
	ev := c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("duration", dur).
		Str("request_id", req.Header.Get(c.cfg.RequestIDHeader))
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("http round trip")
}

// send builds the request, runs the interceptor chain around one round trip and
// returns the resulting envelope.
func (c *Client) send(ctx context.Context, call *Call) (*RawEnvelope, error) {
	ropts := []httpx.RequestOption{httpx.WithQuery(encodeParams(call.Params))}
	for k, vv := range call.Options.Header {
		for _, v := range vv {
			ropts = append(ropts, httpx.WithHeader(k, v))
		}
	}
	if call.Options.Timeout > 0 {
		ropts = append(ropts, httpx.WithRequestTimeout(call.Options.Timeout))
	}
	req, err := c.http.NewJSONRequest(ctx, call.Method, call.Path, call.Body, ropts...)
	if err != nil {
		return nil, err
	}
	for _, ri := range c.reqInterceptors {
		if ri == nil {
			continue
		}
		if err := ri(req); err != nil {
			return nil, err
		}
	}
	call.Request = req

	env, err := c.roundTrip(req)
	for _, ri := range c.respInterceptors {
		if ri != nil {
			env, err = ri(call, env, err)
		}
	}
	if err == nil && env == nil {
		return nil, errors.New("apiclient: response interceptor returned neither envelope nor error")
	}
	return env, err
}

func (c *Client) roundTrip(req *http.Request) (*RawEnvelope, error) {
	var w wireEnvelope
	_, err := c.http.DoJSONInto(req, &w)
	var de *httpx.DecodeError
	if errors.As(err, &de) {
		return nil, &MalformedEnvelopeError{Method: req.Method, URL: req.URL.String(), Cause: de.Cause}
	}
	if err != nil {
		return nil, err
	}
	env, err := w.validate()
	if err != nil {
		return nil, &MalformedEnvelopeError{Method: req.Method, URL: req.URL.String(), Cause: err}
	}
	return env, nil
}

// loading shows the overlay and returns a release func that hides it exactly once.
func (c *Client) loading() func() {
	c.notifier.ShowLoading(c.cfg.LoadingTitle)
	var once sync.Once
	return func() { once.Do(c.notifier.HideLoading) }
}
