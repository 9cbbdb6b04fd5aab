package repositorycache

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const fenceStripes = 256

// fence orders cache writes against evictions. Each stripe carries an epoch
// that evictions bump; a read-through write only lands if the epoch it
// observed before computing is still current.
type fence struct {
	stripes [fenceStripes]stripe
}

type stripe struct {
	mu    sync.Mutex
	epoch uint64
}

func (f *fence) stripe(key string) *stripe {
	return &f.stripes[xxhash.Sum64String(key)%fenceStripes]
}

func (f *fence) epoch(key string) uint64 {
	s := f.stripe(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// commit runs write only when no eviction touched the key's stripe since
// epoch was read.
func (f *fence) commit(key string, epoch uint64, write func() error) (bool, error) {
	s := f.stripe(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false, nil
	}
	return true, write()
}

// invalidate bumps the stripe epoch and runs evict under the stripe lock.
func (f *fence) invalidate(key string, evict func() error) error {
	s := f.stripe(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return evict()
}

// flightKey scopes single-flight calls to an epoch so callers arriving after
// an eviction never join a computation that started before it.
func flightKey(key string, epoch uint64) string {
	return key + "#" + strconv.FormatUint(epoch, 10)
}
