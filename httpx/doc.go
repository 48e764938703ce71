// Package httpx is the transport layer under apiclient:
// - a tuned, reusable transport with sane defaults
// - request building with base URL (absolute, or a path prefix resolved against an origin) + default headers
// - error type carrying method, url, status, request id and a limited body copy
// - before/after hooks and RoundTripper middleware for logging and auth without hard dependencies
// - optional cookie jar so session cookies behave like a browser's
//
// It never retries. A failed attempt is returned to the caller as is.
package httpx
