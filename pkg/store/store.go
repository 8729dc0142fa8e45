package store

import (
	"context"
	"errors"
	"sync"
)

// Persisted keys.
const (
	KeyUser     = "user"
	KeyToken    = "token"
	KeyTasks    = "tasks"
	KeyOrders   = "orders"
	KeyAssets   = "assets"
	KeyProjects = "projects"
)

// SnapshotKeys are the four collection keys replaced on every sync.
var SnapshotKeys = []string{KeyTasks, KeyOrders, KeyAssets, KeyProjects}

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is a durable key-value cache. It offers no transactions across keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, keys ...string) error
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}
