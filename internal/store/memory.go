// internal/store/memory.go
//
// Durable key/value storage used by the client for the progress blob,
// auth tokens and the cached user.
//
// This file holds the Store interface and the in-memory implementation,
// used in tests and when no durable backend is configured.
//
// Characteristics (memory):
//   - Values kept in a map keyed by name.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
)

// Keys used by the client.
const (
	KeyProgress     = "phanda-progress"
	KeyAccessToken  = "phanda-access-token"
	KeyRefreshToken = "phanda-refresh-token"
	KeyUser         = "phanda-user"
	KeyDeviceID     = "phanda-device-id"
)

// Store is a string key/value store.
// Implementations may be backed by memory (this file), a JSON file or SQLite.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu     sync.RWMutex      // guards values
	values map[string]string // keyed by storage key
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{values: make(map[string]string)}
}

func (m *memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memory) Close() error { return nil }
