package httpx

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

type Option interface{ apply(*Config) }

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

func WithBaseURL(baseURL string) Option {
	return optionFunc(func(c *Config) { c.BaseURL = baseURL })
}

func WithOrigin(origin string) Option {
	return optionFunc(func(c *Config) { c.Origin = origin })
}

func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.Timeout = d })
}

// WithCookies installs an in-memory cookie jar scoped by the public suffix list,
// so cookies set by the API are sent back on later calls.
func WithCookies() Option {
	return optionFunc(func(c *Config) {
		// cookiejar.New never returns a non-nil error.
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		c.Jar = jar
	})
}

func WithDefaultHeader(key, value string) Option {
	return optionFunc(func(c *Config) {
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = make(http.Header)
		}
		c.DefaultHeaders.Set(key, value)
	})
}

// WithDefaultHeaders sets each header in h on every request, replacing
// earlier defaults of the same name.
func WithDefaultHeaders(h http.Header) Option {
	return optionFunc(func(c *Config) {
		for k, vv := range h {
			if len(vv) == 0 {
				continue
			}
			if c.DefaultHeaders == nil {
				c.DefaultHeaders = make(http.Header)
			}
			c.DefaultHeaders[http.CanonicalHeaderKey(k)] = append([]string(nil), vv...)
		}
	})
}

func WithUserAgent(ua string) Option {
	return optionFunc(func(c *Config) { c.UserAgent = ua })
}

func WithMaxErrorBodyBytes(n int64) Option {
	return optionFunc(func(c *Config) { c.MaxErrorBodyBytes = n })
}

func WithRequestID(cfg RequestIDConfig) Option {
	return optionFunc(func(c *Config) { c.RequestID = cfg })
}
