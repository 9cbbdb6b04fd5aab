package repositorycache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore is a map backed cache.CacheService that records every call.
type memoryStore struct {
	mu      sync.Mutex
	data    map[string]any
	ttls    map[string]time.Duration
	gets    int
	sets    int
	deletes []string

	getErr     error
	setErr     error
	deleteErrs map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data:       map[string]any{},
		ttls:       map[string]time.Duration{},
		deleteErrs: map[string]error{},
	}
}

func (m *memoryStore) Get(ctx context.Context, key string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	if err := m.deleteErrs[key]; err != nil {
		return err
	}
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *memoryStore) seed(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *memoryStore) peek(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memoryStore) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *memoryStore) deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}
