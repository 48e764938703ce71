package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File keeps all keys in one JSON object on disk.
//
// Without Watch every Get reads the file, so values written by another process
// (a login flow, for instance) are seen immediately. With Watch the contents are
// cached and the cache is dropped whenever the file changes on disk.
type File struct {
	path string

	mu       sync.Mutex
	watching bool
	cache    map[string]string
}

func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("storage: empty file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", path, err)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute path of the backing file.
func (f *File) Path() string { return f.path }

func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.loadLocked()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.loadLocked()
	if err != nil {
		return err
	}
	next := make(map[string]string, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	next[key] = value
	return f.storeLocked(next)
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	next := make(map[string]string, len(m))
	for k, v := range m {
		if k != key {
			next[k] = v
		}
	}
	return f.storeLocked(next)
}

// Watch caches the file contents until ctx is done, reloading after every
// change fsnotify reports for the file. It returns once the watcher is running.
func (f *File) Watch(ctx context.Context) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("storage: create %s: %w", dir, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("storage: new watcher: %w", err)
	}
	// Watch the directory: atomic writes replace the file, which drops a file-level watch.
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: watch %s: %w", dir, err)
	}

	f.mu.Lock()
	f.watching = true
	f.cache = nil
	f.mu.Unlock()

	go func() {
		defer func() {
			_ = w.Close()
			f.mu.Lock()
			f.watching = false
			f.cache = nil
			f.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == f.path {
					f.invalidate()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
				f.invalidate()
			}
		}
	}()
	return nil
}

func (f *File) invalidate() {
	f.mu.Lock()
	f.cache = nil
	f.mu.Unlock()
}

func (f *File) loadLocked() (map[string]string, error) {
	if f.watching && f.cache != nil {
		return f.cache, nil
	}
	m, err := readJSONFile(f.path)
	if err != nil {
		return nil, err
	}
	if f.watching {
		f.cache = m
	}
	return m, nil
}

func (f *File) storeLocked(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("storage: create dir: %w", err)
	}
	if err := writeJSONAtomic(f.path, m); err != nil {
		return fmt.Errorf("storage: write %s: %w", f.path, err)
	}
	if f.watching {
		f.cache = m
	}
	return nil
}

func readJSONFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	m := map[string]string{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", path, err)
	}
	return m, nil
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err == nil {
		return nil
	}

	defer os.Remove(tmp)

	if runtime.GOOS == "windows" {
		_ = os.Remove(path)
	}
	return os.Rename(tmp, path)
}
