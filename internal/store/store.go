// Package store provides the persisted key-value settings store.
// Values live in a flat YAML map on disk; every mutation rewrites the file
// atomically so a crash never leaves a half-written store behind.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// debounceDelay coalesces bursts of file events (temp write + rename).
const debounceDelay = 200 * time.Millisecond

// Store is a synchronous key-value store persisted across restarts.
type Store struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	values map[string]string
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:   path,
		logger: logger.Named("store"),
		values: make(map[string]string),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and persists the store.
// The in-memory value is updated even when writing the file fails.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.values[key]; ok && cur == value {
		return nil
	}
	s.values[key] = value
	return s.writeLocked()
}

// Delete removes key and persists the store. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.writeLocked()
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload re-reads the backing file, replacing the in-memory values.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.values = make(map[string]string)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("reading settings %s: %w", s.path, err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parsing settings %s: %w", s.path, err)
	}
	if values == nil {
		values = make(map[string]string)
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// writeLocked persists the current values. Must be called with s.mu held.
func (s *Store) writeLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating settings directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp settings file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

// Watch reloads the store whenever another process rewrites the backing file
// and signals on the returned channel afterwards. The watch ends with ctx.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating settings directory %s: %w", dir, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	changes := make(chan struct{}, 1)
	go s.processEvents(ctx, fsWatcher, changes)
	return changes, nil
}

func (s *Store) processEvents(ctx context.Context, fsWatcher *fsnotify.Watcher, changes chan<- struct{}) {
	defer fsWatcher.Close()

	target := filepath.Clean(s.path)
	var (
		debounceMu sync.Mutex
		debounce   *time.Timer
	)
	fire := func() {
		if err := s.Reload(); err != nil {
			s.logger.Warn("Failed to reload settings", zap.Error(err))
			return
		}
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			debounceMu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounceMu.Unlock()
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.logger.Debug("Settings file changed", zap.String("op", event.Op.String()))
			debounceMu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, fire)
			debounceMu.Unlock()
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Settings watcher error", zap.Error(err))
		}
	}
}
