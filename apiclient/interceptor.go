package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lgc202/apikit/httpx"
	"github.com/lgc202/apikit/storage"
)

// RequestInterceptor edits an outgoing request. A non-nil error aborts the call
// and is returned to the caller unchanged; response interceptors do not run.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor maps the outcome of a call to a new outcome. Exactly one
// of env and err is non-nil on input; interceptors run in order, each seeing
// the previous one's result.
type ResponseInterceptor func(call *Call, env *RawEnvelope, err error) (*RawEnvelope, error)

const (
	DefaultErrorMessage   = "request failed"
	DefaultNetworkMessage = "network anomaly, please retry later"
)

// DefaultStatusMessages maps HTTP status codes to what the user is told.
func DefaultStatusMessages() map[int]string {
	return map[int]string{
		http.StatusBadRequest:          "request parameter error",
		http.StatusForbidden:           "access denied",
		http.StatusNotFound:            "requested resource not found",
		http.StatusInternalServerError: "internal server error",
		http.StatusBadGateway:          "bad gateway",
		http.StatusServiceUnavailable:  "service unavailable",
	}
}

// AuthInterceptor sets "Authorization: Bearer <token>" when store has a token under key.
func AuthInterceptor(store Storage, key string) RequestInterceptor {
	return func(req *http.Request) error {
		token, err := store.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}

// ErrorHandler turns failed calls into user feedback.
type ErrorHandler struct {
	Notifier  Notifier
	Navigator Navigator
	Storage   Storage

	TokenKey   string
	LoginRoute string

	DefaultMessage string
	NetworkMessage string
	StatusMessages map[int]string

	Log zerolog.Logger
}

// HandleBusiness toasts the envelope message and, for code 401, removes the
// token and relaunches at the login route. The session reset happens even when
// toast is false.
func (h *ErrorHandler) HandleBusiness(env *RawEnvelope, toast bool) {
	msg := env.Message
	if msg == "" {
		msg = h.DefaultMessage
	}
	h.Log.Warn().Int("code", env.Code).Str("message", env.Message).Msg("business error")
	if toast {
		h.Notifier.Toast(msg)
	}
	if env.Code != CodeUnauthorized {
		return
	}
	if err := h.Storage.Remove(h.TokenKey); err != nil {
		h.Log.Warn().Err(err).Str("key", h.TokenKey).Msg("clear token")
	}
	if err := h.Navigator.ReLaunch(h.LoginRoute); err != nil {
		h.Log.Warn().Err(err).Str("route", h.LoginRoute).Msg("relaunch to login")
	}
	h.Log.Info().Str("route", h.LoginRoute).Msg("session expired, token cleared")
}

// NetworkMessageFor returns what the user is told for a transport failure.
func (h *ErrorHandler) NetworkMessageFor(err error) string {
	if he, ok := httpx.AsError(err); ok && he.StatusCode != 0 {
		if msg, ok := h.StatusMessages[he.StatusCode]; ok {
			return msg
		}
	}
	return h.NetworkMessage
}

// HandleNetwork toasts the mapped message. It never fails.
func (h *ErrorHandler) HandleNetwork(err error, toast bool) {
	ev := h.Log.Warn().Err(err)
	if he, ok := httpx.AsError(err); ok {
		ev = ev.Int("status", he.StatusCode).Str("request_id", he.RequestID)
	}
	ev.Msg("network error")
	// A caller that canceled its own context does not need to be told.
	if !toast || errors.Is(err, context.Canceled) {
		return
	}
	h.Notifier.Toast(h.NetworkMessageFor(err))
}

// BusinessInterceptor fails envelopes whose code is not success and reports
// malformed envelopes with the default message.
func BusinessInterceptor(h *ErrorHandler) ResponseInterceptor {
	return func(call *Call, env *RawEnvelope, err error) (*RawEnvelope, error) {
		if err != nil {
			if errors.Is(err, ErrMalformedEnvelope) {
				h.Log.Warn().Err(err).Msg("malformed envelope")
				if call.Options.ShowError() {
					h.Notifier.Toast(h.DefaultMessage)
				}
			}
			return env, err
		}
		if env.OK() {
			return env, nil
		}
		h.HandleBusiness(env, call.Options.ShowError())
		msg := env.Message
		if msg == "" {
			msg = h.DefaultMessage
		}
		return nil, &BusinessError{Code: env.Code, Message: msg}
	}
}

// NetworkInterceptor reports *httpx.Error failures and passes them on unchanged.
func NetworkInterceptor(h *ErrorHandler) ResponseInterceptor {
	return func(call *Call, env *RawEnvelope, err error) (*RawEnvelope, error) {
		if _, ok := httpx.AsError(err); ok {
			h.HandleNetwork(err, call.Options.ShowError())
		}
		return env, err
	}
}
