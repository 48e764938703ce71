// Package apiclient calls backends that wrap every response in a JSON envelope:
//
//	{"code": 0, "message": "ok", "data": ...}
//
// Code 0 or 200 is success and the typed helpers (Get, Post, Put, Delete)
// return only data. Any other code is a *BusinessError; HTTP and transport
// failures are returned as *httpx.Error. Both kinds are surfaced to the user
// through a Notifier, and a business 401 clears the stored token and relaunches
// navigation at the login route.
//
// A Client is built once at startup and shared; it is safe for concurrent use.
//
//	c, err := apiclient.New(apiclient.DefaultConfig(), apiclient.WithNotifier(n))
//	users, err := apiclient.Get[[]User](ctx, c, "/users", nil)
//	res, err := apiclient.Post[LoginResult](ctx, c, "/login", params, apiclient.WithLoading())
package apiclient
