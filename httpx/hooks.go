package httpx

import (
	"net/http"
	"time"
)

// BeforeHook runs right before a request is sent. A non-nil error aborts the send.
type BeforeHook func(req *http.Request) error

// AfterHook observes every completed send, successful or not.
type AfterHook func(req *http.Request, resp *http.Response, err error, dur time.Duration)

type Middleware func(next http.RoundTripper) http.RoundTripper

// chain applies mws so that mws[0] is the outermost wrapper.
func chain(rt http.RoundTripper, mws []Middleware) http.RoundTripper {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		rt = mws[i](rt)
	}
	return rt
}
