package bunstore

import (
	"context"
	"sync"
	"time"
)

// memStore is a map backed cache.CacheService.
type memStore struct {
	mu   sync.Mutex
	data map[string]any
}

func newStore() *memStore {
	return &memStore{data: map[string]any{}}
}

func (m *memStore) Get(ctx context.Context, key string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
