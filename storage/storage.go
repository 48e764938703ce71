// Package storage holds small string key/value stores used for credentials.
package storage

import "errors"

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is the full read/write contract shared by Memory and File.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
)
