// Package cache provides the store abstraction, TTL management and
// configuration shared by entity repositories.
//
// # Overview
//
// This package exports:
//
//   - CacheService: the key-value store cache facades write through
//   - TTL: the default time-to-live of a repository, in minutes, bounded by a ceiling
//   - Config: driver selection and tuning, loaded with viper and validated with ozzo-validation
//   - Decode: converts values handed back by a store into the requested type
//
// # Stores
//
// NewCacheService builds the store selected by Config.Driver:
//
//	cfg, err := cache.LoadConfig(viper.GetViper())
//	store, err := cache.NewCacheService(cfg)
//
// The memory driver is backed by sturdyc and keeps values as they were
// written. The redis driver encodes values with msgpack, so reads hand back an
// encoded payload; Decode turns either form into T:
//
//	raw, ok, err := store.Get(ctx, "users.42")
//	user, err := cache.Decode[User](raw)
//
// Implementations must treat deleting an absent key as a successful no-op.
//
// # TTL
//
// TTL values are whole minutes. The stored value always satisfies
// 0 < value <= max, where max is read once from configuration:
//
//	ttl := cache.NewTTL(cfg.TTL, cfg.TTLMax)
//	ttl.Set(5000)        // stored as max
//	ttl.Set("soon")      // not a positive integer: reset to the default
//	ttl.Effective(15)    // 15 minutes for a single write, stored value unchanged
//
// Input is coerced with spf13/cast, so numeric strings are accepted.
//
// # Configuration
//
// LoadConfig reads cache.ttl, cache.ttl-max, cache.driver, cache.capacity,
// cache.shards, cache.eviction-percentage, cache.redis.* and app.debug.
// Environment variables override file values with dots and dashes replaced by
// underscores, e.g. CACHE_TTL_MAX.
//
// # See Also
//
// The repositorycache package builds the per entity facade on top of these
// types; the keys package derives the keys it evicts.
package cache
