package cache

import (
	"sync/atomic"
	"time"

	"github.com/spf13/cast"
)

const (
	// DefaultTTLMinutes is used when no usable default TTL is configured.
	DefaultTTLMinutes = 60
	// DefaultTTLMaxMinutes is used when no usable TTL ceiling is configured.
	DefaultTTLMaxMinutes = 1440
)

// TTL holds the time-to-live applied to cache writes, in minutes.
// The stored value always satisfies 0 < value <= max.
type TTL struct {
	def   int
	max   int
	value atomic.Int64
}

// NewTTL creates a TTL with the given default and ceiling. The ceiling is read
// once; a non-positive ceiling falls back to DefaultTTLMaxMinutes.
func NewTTL(def any, max int) *TTL {
	if max <= 0 {
		max = DefaultTTLMaxMinutes
	}

	t := &TTL{max: max}
	t.def = t.clamp(def, min(DefaultTTLMinutes, max))
	t.value.Store(int64(t.def))
	return t
}

// Set stores min(value, max). Input that does not coerce to a positive
// integer resets the TTL to its default.
func (t *TTL) Set(value any) {
	t.value.Store(int64(t.clamp(value, t.def)))
}

// Minutes returns the stored TTL.
func (t *TTL) Minutes() int {
	return int(t.value.Load())
}

// Max returns the ceiling.
func (t *TTL) Max() int {
	return t.max
}

// Duration returns the stored TTL as a time.Duration.
func (t *TTL) Duration() time.Duration {
	return time.Duration(t.Minutes()) * time.Minute
}

// Effective returns the TTL for a single write. An absent or unusable
// override yields the stored value; anything else is clamped to the ceiling
// and does not change the stored value.
func (t *TTL) Effective(override any) time.Duration {
	minutes := t.Minutes()
	if n, ok := toPositive(override); ok {
		minutes = min(n, t.max)
	}
	return time.Duration(minutes) * time.Minute
}

func (t *TTL) clamp(value any, fallback int) int {
	n, ok := toPositive(value)
	if !ok {
		n = fallback
	}
	return min(n, t.max)
}

func toPositive(value any) (int, bool) {
	if value == nil {
		return 0, false
	}
	n, err := cast.ToIntE(value)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
