package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgc202/apikit/httpx"
	"github.com/lgc202/apikit/storage"
)

type recorder struct {
	mu      sync.Mutex
	toasts  []string
	shows   int
	hides   int
	loading bool
	routes  []string
}

func (r *recorder) Toast(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, message)
}

func (r *recorder) ShowLoading(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shows++
	r.loading = true
}

func (r *recorder) HideLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hides++
	r.loading = false
}

func (r *recorder) ReLaunch(route string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	return nil
}

func (r *recorder) snapshot() (toasts []string, shows, hides int, routes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.toasts...), r.shows, r.hides, append([]string(nil), r.routes...)
}

func (r *recorder) isLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

type fixture struct {
	client *Client
	rec    *recorder
	store  *storage.Memory
	srv    *httptest.Server
}

func newFixture(t *testing.T, h http.HandlerFunc, opts ...Option) *fixture {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	rec := &recorder{}
	store := storage.NewMemory()
	cfg := DefaultConfig()
	cfg.Origin = srv.URL

	base := []Option{WithStorage(store), WithNotifier(rec), WithNavigator(rec)}
	c, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{client: c, rec: rec, store: store, srv: srv}
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

type user struct {
	ID int `json:"id"`
}

func TestGet_UnwrapsDataWithoutToken(t *testing.T) {
	var gotAuth, gotPath string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		writeEnvelope(w, 0, "ok", []map[string]int{{"id": 1}})
	})

	users, err := Get[[]user](context.Background(), f.client, "/users", nil)
	require.NoError(t, err)
	assert.Equal(t, []user{{ID: 1}}, users)
	assert.Equal(t, "/api/users", gotPath)
	assert.Empty(t, gotAuth)

	toasts, _, _, _ := f.rec.snapshot()
	assert.Empty(t, toasts)
}

func TestAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "no token", token: "", want: ""},
		{name: "token", token: "abc.def", want: "Bearer abc.def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var present bool
			f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				_, present = r.Header["Authorization"]
				got = r.Header.Get("Authorization")
				writeEnvelope(w, 0, "ok", nil)
			})
			if tt.token != "" {
				require.NoError(t, f.store.Set("token", tt.token))
			}

			_, err := Get[any](context.Background(), f.client, "/me", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.token != "", present)
		})
	}
}

func TestSuccessCodes(t *testing.T) {
	for _, code := range []int{CodeOK, CodeSuccess} {
		f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, code, "ok", map[string]string{"name": "x"})
		})
		out, err := Get[map[string]string](context.Background(), f.client, "/thing", nil)
		require.NoError(t, err, "code %d", code)
		assert.Equal(t, map[string]string{"name": "x"}, out)
	}
}

func TestPost_Unauthorized(t *testing.T) {
	var gotBody map[string]string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeEnvelope(w, 401, "expired", nil)
	})
	require.NoError(t, f.store.Set("token", "stale"))

	_, err := Post[user](context.Background(), f.client, "/login", map[string]string{"username": "u"})
	require.Error(t, err)
	assert.Equal(t, "expired", err.Error())
	assert.True(t, IsUnauthorized(err))

	be, ok := AsBusinessError(err)
	require.True(t, ok)
	assert.Equal(t, 401, be.Code)

	_, getErr := f.store.Get("token")
	assert.ErrorIs(t, getErr, storage.ErrNotFound)

	toasts, _, _, routes := f.rec.snapshot()
	assert.Equal(t, []string{"expired"}, toasts)
	assert.Equal(t, []string{"/pages/login/login"}, routes)
	assert.Equal(t, map[string]string{"username": "u"}, gotBody)
}

func TestBusinessError_KeepsToken(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 1001, "", nil)
	})
	require.NoError(t, f.store.Set("token", "good"))

	_, err := Get[any](context.Background(), f.client, "/orders", nil)
	require.Error(t, err)
	assert.Equal(t, DefaultErrorMessage, err.Error())
	assert.False(t, IsUnauthorized(err))
	_, isNet := httpx.AsError(err)
	assert.False(t, isNet)

	v, getErr := f.store.Get("token")
	require.NoError(t, getErr)
	assert.Equal(t, "good", v)

	toasts, _, _, routes := f.rec.snapshot()
	assert.Equal(t, []string{DefaultErrorMessage}, toasts)
	assert.Empty(t, routes)
}

func TestNetworkError_StatusMessages(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "request parameter error"},
		{http.StatusForbidden, "access denied"},
		{http.StatusNotFound, "requested resource not found"},
		{http.StatusInternalServerError, "internal server error"},
		{http.StatusBadGateway, "bad gateway"},
		{http.StatusServiceUnavailable, "service unavailable"},
		{http.StatusUnauthorized, DefaultNetworkMessage},
		{http.StatusTeapot, DefaultNetworkMessage},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				// A well-formed envelope must not matter when the status is an error.
				w.WriteHeader(tt.status)
				writeEnvelope(w, 0, "ok", nil)
			})
			require.NoError(t, f.store.Set("token", "keep"))

			_, err := Get[any](context.Background(), f.client, "/x", nil)
			he, ok := httpx.AsError(err)
			require.True(t, ok, "expected *httpx.Error, got %T", err)
			assert.Equal(t, tt.status, he.StatusCode)

			toasts, _, _, routes := f.rec.snapshot()
			assert.Equal(t, []string{tt.want}, toasts)
			assert.Empty(t, routes)
			_, getErr := f.store.Get("token")
			assert.NoError(t, getErr)
		})
	}
}

func TestNetworkError_NoResponse(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.srv.Close()

	_, err := Get[any](context.Background(), f.client, "/x", nil)
	he, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.Zero(t, he.StatusCode)

	toasts, _, _, _ := f.rec.snapshot()
	assert.Equal(t, []string{DefaultNetworkMessage}, toasts)
}

func TestNetworkError_ClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.Origin = srv.URL
	cfg.Timeout = 50 * time.Millisecond
	c, err := New(cfg, WithNotifier(rec))
	require.NoError(t, err)

	_, err = Get[any](context.Background(), c, "/slow", nil)
	he, ok := httpx.AsError(err)
	require.True(t, ok)
	assert.True(t, he.Timeout())

	toasts, _, _, _ := rec.snapshot()
	assert.Equal(t, []string{DefaultNetworkMessage}, toasts)
}

func TestTimeoutAboveTenSecondsIsHonored(t *testing.T) {
	if testing.Short() {
		t.Skip("waits past the default timeout")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(httpx.DefaultTimeout + time.Second):
		}
		writeEnvelope(w, 0, "ok", 42)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Origin = srv.URL
	cfg.Timeout = 30 * time.Second
	c, err := New(cfg)
	require.NoError(t, err)

	got, err := Get[int](context.Background(), c, "/slow", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestHeadersAndRequestID(t *testing.T) {
	var got http.Header
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeEnvelope(w, 0, "ok", nil)
	})
	cfg := DefaultConfig()
	cfg.Origin = f.srv.URL
	cfg.Headers = http.Header{"X-App": {"shop"}, "X-Channel": {"web"}}
	cfg.RequestIDHeader = "X-Trace-ID"
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = Get[any](context.Background(), c, "/x", nil, WithHeader("X-Channel", "cli"))
	require.NoError(t, err)
	assert.Equal(t, "shop", got.Get("X-App"))
	assert.Equal(t, []string{"cli"}, got.Values("X-Channel"))
	assert.Len(t, got.Get("X-Trace-ID"), 36)
	assert.Empty(t, got.Get("X-Request-ID"))
}

func TestCanceledContextIsNotToasted(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "ok", nil)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Get[any](ctx, f.client, "/x", nil)
	require.Error(t, err)
	toasts, _, _, _ := f.rec.snapshot()
	assert.Empty(t, toasts)
}

func TestLoading_WrapsSlowCall(t *testing.T) {
	rec := &recorder{}
	var loadingDuringCall atomic.Bool
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		loadingDuringCall.Store(rec.isLoading())
		time.Sleep(50 * time.Millisecond)
		writeEnvelope(w, 0, "ok", map[string]int{"n": 1})
	}, WithNotifier(rec))

	out, err := Get[map[string]int](context.Background(), f.client, "/data", map[string]any{}, WithLoading())
	require.NoError(t, err)
	assert.Equal(t, 1, out["n"])
	assert.True(t, loadingDuringCall.Load())
	assert.False(t, rec.isLoading())

	_, shows, hides, _ := rec.snapshot()
	assert.Equal(t, 1, shows)
	assert.Equal(t, 1, hides)
}

func TestLoading_HiddenOnFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := Get[any](context.Background(), f.client, "/data", nil, WithLoading())
	require.Error(t, err)

	_, shows, hides, _ := f.rec.snapshot()
	assert.Equal(t, 1, shows)
	assert.Equal(t, 1, hides)
	assert.False(t, f.rec.isLoading())
}

func TestLoading_NotShownByDefault(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "ok", nil)
	})
	_, err := Get[any](context.Background(), f.client, "/data", nil)
	require.NoError(t, err)

	_, shows, hides, _ := f.rec.snapshot()
	assert.Zero(t, shows)
	assert.Zero(t, hides)
}

func TestWithoutErrorToast(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeEnvelope(w, 401, "expired", nil)
	})
	require.NoError(t, f.store.Set("token", "stale"))

	_, err := Get[any](context.Background(), f.client, "/gone", nil, WithoutErrorToast())
	assert.True(t, httpx.IsHTTPStatus(err, http.StatusNotFound))

	_, err = Get[any](context.Background(), f.client, "/me", nil, WithoutErrorToast())
	assert.True(t, IsUnauthorized(err))

	toasts, _, _, routes := f.rec.snapshot()
	assert.Empty(t, toasts)
	assert.Equal(t, []string{"/pages/login/login"}, routes)
	_, getErr := f.store.Get("token")
	assert.ErrorIs(t, getErr, storage.ErrNotFound)
}

func TestMalformedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>oops</html>"},
		{name: "missing code", body: `{"message":"ok","data":1}`},
		{name: "trailing value", body: `{"code":0} {"code":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := Get[any](context.Background(), f.client, "/x", nil)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
			_, isNet := httpx.AsError(err)
			assert.False(t, isNet)

			toasts, _, _, _ := f.rec.snapshot()
			assert.Equal(t, []string{DefaultErrorMessage}, toasts)
		})
	}
}

func TestDataTypeMismatch(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "ok", "not a number")
	})
	_, err := Get[int](context.Background(), f.client, "/n", nil, WithLoading())
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
	_, shows, hides, _ := f.rec.snapshot()
	assert.Equal(t, shows, hides)
}

type failingStore struct{ err error }

func (s failingStore) Get(string) (string, error) { return "", s.err }
func (s failingStore) Remove(string) error        { return s.err }

func TestRequestInterceptorErrorAborts(t *testing.T) {
	var hits atomic.Int32
	boom := errors.New("keychain locked")
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnvelope(w, 0, "ok", nil)
	}, WithStorage(failingStore{err: boom}))

	_, err := Get[any](context.Background(), f.client, "/x", nil, WithLoading())
	assert.Same(t, boom, err)
	assert.Zero(t, hits.Load())

	toasts, shows, hides, _ := f.rec.snapshot()
	assert.Empty(t, toasts)
	assert.Equal(t, 1, shows)
	assert.Equal(t, 1, hides)
}

func TestPutAndDeleteShapes(t *testing.T) {
	type seen struct {
		method, query, body, ctype, extra string
	}
	var got seen
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = seen{
			method: r.Method,
			query:  r.URL.RawQuery,
			body:   string(b),
			ctype:  r.Header.Get("Content-Type"),
			extra:  r.Header.Get("X-Trace"),
		}
		writeEnvelope(w, 200, "ok", true)
	})

	ok, err := Put[bool](context.Background(), f.client, "/users/1", user{ID: 1}, WithHeader("X-Trace", "t"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, http.MethodPut, got.method)
	assert.JSONEq(t, `{"id":1}`, got.body)
	assert.Equal(t, "application/json", got.ctype)
	assert.Equal(t, "t", got.extra)

	_, err = Delete[bool](context.Background(), f.client, "/users", map[string]any{"id": []int{1, 2}, "soft": true, "skip": nil})
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "id=1&id=2&soft=true", got.query)
	assert.Empty(t, got.body)
}

func TestPost_NilBody(t *testing.T) {
	var bodyLen int
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodyLen = len(b)
		writeEnvelope(w, 0, "ok", nil)
	})
	_, err := Post[any](context.Background(), f.client, "/logout", (*user)(nil))
	require.NoError(t, err)
	assert.Zero(t, bodyLen)
}

func TestCustomInterceptors(t *testing.T) {
	var order []string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "server:"+r.Header.Get("X-Tenant"))
		writeEnvelope(w, 0, "ok", nil)
	},
		WithRequestInterceptors(func(req *http.Request) error {
			req.Header.Set("X-Tenant", "acme")
			return nil
		}),
		WithResponseInterceptors(func(call *Call, env *RawEnvelope, err error) (*RawEnvelope, error) {
			order = append(order, "response:"+call.Request.URL.Path)
			return env, err
		}),
	)

	_, err := Get[any](context.Background(), f.client, "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"server:acme", "response:/api/x"}, order)
}

func TestWithoutDefaultInterceptors(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 401, "expired", nil)
	}, WithoutDefaultInterceptors())
	require.NoError(t, f.store.Set("token", "t"))

	env, err := Do[json.RawMessage](context.Background(), f.client, Call{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	assert.Nil(t, env)

	toasts, _, _, routes := f.rec.snapshot()
	assert.Empty(t, toasts)
	assert.Empty(t, routes)
}

func TestNew_InvalidOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Origin = "not-a-url"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestHTTPEscapeHatch(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "plain")
	})
	hc := f.client.HTTP()
	req, err := hc.NewRequest(context.Background(), http.MethodGet, "/health")
	require.NoError(t, err)
	resp, err := hc.DoStatus(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "plain", string(b))
}

func TestConcurrentCalls(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "13" {
			writeEnvelope(w, 500, "unlucky", nil)
			return
		}
		writeEnvelope(w, 0, "ok", map[string]string{"id": id})
	})

	const n = 20
	var wg sync.WaitGroup
	var failed atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := Get[map[string]string](context.Background(), f.client, "/items", map[string]any{"id": i}, WithLoading())
			if err != nil {
				failed.Add(1)
				return
			}
			assert.Equal(t, strconv.Itoa(i), out["id"])
		}(i)
	}
	wg.Wait()

	toasts, shows, hides, _ := f.rec.snapshot()
	assert.Equal(t, int32(1), failed.Load())
	assert.Equal(t, []string{"unlucky"}, toasts)
	assert.Equal(t, n, shows)
	assert.Equal(t, n, hides)
}
