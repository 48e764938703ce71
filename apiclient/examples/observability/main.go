package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/lgc202/apikit/apiclient"
	"github.com/lgc202/apikit/httpx"
	"github.com/lgc202/apikit/logger"
	"github.com/lgc202/apikit/storage"
	"github.com/lgc202/apikit/ui"
)

func main() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Trace-ID", r.Header.Get("X-Trace-ID"))
		if r.Header.Get("Authorization") == "" {
			fmt.Fprint(w, `{"code":401,"message":"login required"}`)
			return
		}
		fmt.Fprintf(w, `{"code":0,"data":{"tenant":%q}}`, r.Header.Get("X-Tenant"))
	}))
	defer srv.Close()

	dir, err := os.MkdirTemp("", "apikit-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "credentials.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	creds, err := storage.NewFile(path)
	if err != nil {
		panic(err)
	}
	if err := creds.Watch(ctx); err != nil {
		panic(err)
	}

	log := logger.New(logger.Options{Level: "debug", Format: logger.FormatJSON, Out: os.Stdout})
	console := ui.NewConsole(os.Stdout)
	client, err := apiclient.New(apiclient.Config{
		BaseURL:         "/api",
		Origin:          srv.URL,
		RequestIDHeader: "X-Trace-ID",
		Headers:         http.Header{"X-Tenant": {"tenant-a"}},
	},
		apiclient.WithStorage(creds),
		apiclient.WithNotifier(console),
		apiclient.WithNavigator(console),
		apiclient.WithLogger(log),
	)
	if err != nil {
		panic(err)
	}

	client.HTTP().
		WithMiddleware(func(next http.RoundTripper) http.RoundTripper {
			return httpx.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				r = r.Clone(r.Context())
				r.Header.Set("X-Client-Sent", time.Now().UTC().Format(time.RFC3339))
				return next.RoundTrip(r)
			})
		}).
		WithHooks(nil, []httpx.AfterHook{
			func(req *http.Request, resp *http.Response, err error, dur time.Duration) {
				if resp != nil {
					fmt.Printf("trace=%s status=%d dur=%s\n", resp.Header.Get("X-Trace-ID"), resp.StatusCode, dur)
				}
			},
		})

	_, err = apiclient.Get[map[string]string](ctx, client, "/profile", nil)
	fmt.Println("before login:", err, "route:", console.Route())

	// A separate login flow writes the credentials file; the watcher reloads it.
	login, err := storage.NewFile(path)
	if err != nil {
		panic(err)
	}
	if err := login.Set("token", "demo-token"); err != nil {
		panic(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := creds.Get("token"); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	out, err := apiclient.Get[map[string]string](ctx, client, "/profile", nil, apiclient.WithLoading())
	if err != nil {
		panic(err)
	}
	fmt.Println("after login: tenant =", out["tenant"])
}
