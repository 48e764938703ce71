package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/lgc202/apikit/apiclient"
	"github.com/lgc202/apikit/httpx"
	"github.com/lgc202/apikit/logger"
	"github.com/lgc202/apikit/storage"
	"github.com/lgc202/apikit/ui"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func main() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/health" {
			_, _ = io.WriteString(w, `{"status":"up"}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer demo-token" {
			_, _ = io.WriteString(w, `{"code":401,"message":"please sign in again","data":null}`)
			return
		}
		switch r.URL.Path {
		case "/api/users/1":
			_, _ = io.WriteString(w, `{"code":0,"message":"ok","data":{"id":1,"name":"ada"}}`)
		case "/api/users":
			var u user
			_ = json.NewDecoder(r.Body).Decode(&u)
			u.ID = 2
			b, _ := json.Marshal(map[string]any{"code": 200, "message": "created", "data": u})
			_, _ = w.Write(b)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := storage.NewMemory()
	_ = store.Set("token", "demo-token")
	console := ui.NewConsole(os.Stdout)

	client, err := apiclient.New(apiclient.Config{
		BaseURL: "/api",
		Origin:  srv.URL,
		Timeout: 3 * time.Second,
	},
		apiclient.WithStorage(store),
		apiclient.WithNotifier(console),
		apiclient.WithNavigator(console),
		apiclient.WithLogger(logger.New(logger.Options{Level: "debug", Out: os.Stdout})),
	)
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	u, err := apiclient.Get[user](ctx, client, "/users/1", nil, apiclient.WithLoading())
	if err != nil {
		panic(err)
	}
	fmt.Printf("get: %+v\n", u)

	created, err := apiclient.Post[user](ctx, client, "/users", user{Name: "grace"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("post: %+v\n", created)

	// Endpoints outside the envelope go through the raw client.
	req, err := client.HTTP().NewRequest(ctx, http.MethodGet, "/health")
	if err != nil {
		panic(err)
	}
	health, _, err := httpx.DoJSON[map[string]string](client.HTTP(), req)
	if err != nil {
		panic(err)
	}
	fmt.Println("health:", health["status"])

	_ = store.Remove("token")
	_, err = apiclient.Get[user](ctx, client, "/users/1", nil)
	fmt.Println("unauthorized:", apiclient.IsUnauthorized(err), "route:", console.Route())
}
