package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"time"
)

// RequestOptions are per-call flags. The zero value shows error toasts and no loading overlay.
type RequestOptions struct {
	ShowLoading        bool
	SuppressErrorToast bool
	Header             http.Header
	Timeout            time.Duration
}

// ShowError reports whether failures of this call are toasted.
func (o RequestOptions) ShowError() bool { return !o.SuppressErrorToast }

type RequestOption func(*RequestOptions)

// WithLoading shows the loading overlay for the duration of the call.
func WithLoading() RequestOption {
	return func(o *RequestOptions) { o.ShowLoading = true }
}

// WithoutErrorToast keeps failures silent. A business 401 still resets the session.
func WithoutErrorToast() RequestOption {
	return func(o *RequestOptions) { o.SuppressErrorToast = true }
}

func WithHeader(key, value string) RequestOption {
	return func(o *RequestOptions) {
		if o.Header == nil {
			o.Header = make(http.Header)
		}
		o.Header.Set(key, value)
	}
}

// WithTimeout bounds this call; the client timeout still applies if shorter.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *RequestOptions) { o.Timeout = d }
}

func buildOptions(opts []RequestOption) RequestOptions {
	var o RequestOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// Call describes one request.
type Call struct {
	Method string
	// Path is relative to the client's base URL, or absolute.
	Path string
	// Params are encoded into the query string.
	Params map[string]any
	// Body is JSON-encoded; nil sends no body.
	Body    any
	Options RequestOptions

	// Request is the built request, set before response interceptors run.
	Request *http.Request
}

// Do runs call and decodes the envelope data into T.
// If the call asks for loading, the overlay is hidden before Do returns, on every path.
func Do[T any](ctx context.Context, c *Client, call Call) (T, error) {
	var zero T
	if call.Options.ShowLoading {
		release := c.loading()
		defer release()
	}

	env, err := c.send(ctx, &call)
	if err != nil {
		return zero, err
	}
	out, err := decodeData[T](env)
	if err != nil {
		c.log.Warn().Err(err).Str("method", call.Method).Str("path", call.Path).Msg("envelope data does not match result type")
		return zero, &MalformedEnvelopeError{Method: call.Method, URL: requestURL(call.Request), Cause: err}
	}
	return out, nil
}

func Get[T any](ctx context.Context, c *Client, path string, params map[string]any, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, Call{Method: http.MethodGet, Path: path, Params: params, Options: buildOptions(opts)})
}

func Post[T any, D any](ctx context.Context, c *Client, path string, data D, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, Call{Method: http.MethodPost, Path: path, Body: bodyOf(data), Options: buildOptions(opts)})
}

func Put[T any, D any](ctx context.Context, c *Client, path string, data D, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, Call{Method: http.MethodPut, Path: path, Body: bodyOf(data), Options: buildOptions(opts)})
}

func Delete[T any](ctx context.Context, c *Client, path string, params map[string]any, opts ...RequestOption) (T, error) {
	return Do[T](ctx, c, Call{Method: http.MethodDelete, Path: path, Params: params, Options: buildOptions(opts)})
}

// bodyOf maps nil pointers, maps and slices to "no body".
func bodyOf(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

func requestURL(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	return req.URL.String()
}

// encodeParams follows the usual browser-client rules: nil values are dropped,
// slices and arrays repeat the key, times are RFC 3339, everything else is fmt.Sprint.
func encodeParams(params map[string]any) url.Values {
	if len(params) == 0 {
		return nil
	}
	q := make(url.Values, len(params))
	for k, v := range params {
		addParam(q, k, v)
	}
	return q
}

// addParam follows pointers and expands slices element by element, so the
// nil and repeat rules hold at every level.
func addParam(q url.Values, key string, v any) {
	if v == nil {
		return
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return
		}
		addParam(q, key, rv.Elem().Interface())
	case reflect.Map, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return
		}
		q.Add(key, formatParam(v))
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			q.Add(key, string(rv.Bytes()))
			return
		}
		for i := 0; i < rv.Len(); i++ {
			addParam(q, key, rv.Index(i).Interface())
		}
	default:
		q.Add(key, formatParam(v))
	}
}

func formatParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
