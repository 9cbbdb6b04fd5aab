package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrInvalidResultType is returned when a cached value cannot be converted to the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// FetchFn is the function signature used to compute a value on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the key-value store the cache layer writes through.
// Implementations must treat Delete of an absent key as a successful no-op.
type CacheService interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// decoder is implemented by values a remote store hands back still encoded.
type decoder interface {
	Decode(dest any) error
}

// Decode converts a value returned by a CacheService (or by a fetch function)
// into T. Native values are type asserted, encoded values are decoded.
func Decode[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}

	if typed, ok := v.(T); ok {
		return typed, nil
	}

	if enc, ok := v.(decoder); ok {
		var out T
		if err := enc.Decode(&out); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrInvalidResultType, err)
		}
		return out, nil
	}

	return zero, fmt.Errorf("%w: got %s, want %s", ErrInvalidResultType,
		reflect.TypeOf(v), reflect.TypeOf((*T)(nil)).Elem())
}
