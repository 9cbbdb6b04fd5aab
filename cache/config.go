package cache

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
)

// Supported store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Configuration keys read by LoadConfig.
const (
	KeyTTL                = "cache.ttl"
	KeyTTLMax             = "cache.ttl-max"
	KeyDriver             = "cache.driver"
	KeyCapacity           = "cache.capacity"
	KeyShards             = "cache.shards"
	KeyEvictionPercentage = "cache.eviction-percentage"
	KeyRedisAddr          = "cache.redis.addr"
	KeyRedisPassword      = "cache.redis.password"
	KeyRedisDB            = "cache.redis.db"
	KeyDebug              = "app.debug"
)

// Config exposes cache configuration options for consumers of the cache package.
// TTL values are expressed in minutes.
type Config struct {
	TTL                int
	TTLMax             int
	Debug              bool
	Driver             string
	Capacity           int
	NumShards          int
	EvictionPercentage int
	Redis              RedisConfig
}

// RedisConfig holds the settings for the redis driver.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	mem := cacheinfra.DefaultConfig()
	return Config{
		TTL:                DefaultTTLMinutes,
		TTLMax:             DefaultTTLMaxMinutes,
		Driver:             DriverMemory,
		Capacity:           mem.Capacity,
		NumShards:          mem.NumShards,
		EvictionPercentage: mem.EvictionPercentage,
	}
}

// LoadConfig reads the cache configuration from v. Environment variables
// override file values, e.g. CACHE_TTL_MAX for cache.ttl-max.
func LoadConfig(v *viper.Viper) (Config, error) {
	def := DefaultConfig()
	v.SetDefault(KeyTTL, def.TTL)
	v.SetDefault(KeyTTLMax, def.TTLMax)
	v.SetDefault(KeyDriver, def.Driver)
	v.SetDefault(KeyCapacity, def.Capacity)
	v.SetDefault(KeyShards, def.NumShards)
	v.SetDefault(KeyEvictionPercentage, def.EvictionPercentage)
	v.SetDefault(KeyDebug, false)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := Config{
		// a non-numeric ttl coerces to the default instead of failing
		TTL:                cast.ToInt(v.Get(KeyTTL)),
		TTLMax:             v.GetInt(KeyTTLMax),
		Debug:              v.GetBool(KeyDebug),
		Driver:             strings.ToLower(v.GetString(KeyDriver)),
		Capacity:           v.GetInt(KeyCapacity),
		NumShards:          v.GetInt(KeyShards),
		EvictionPercentage: v.GetInt(KeyEvictionPercentage),
		Redis: RedisConfig{
			Addr:     v.GetString(KeyRedisAddr),
			Password: v.GetString(KeyRedisPassword),
			DB:       v.GetInt(KeyRedisDB),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	memory := c.Driver == DriverMemory
	err := validation.ValidateStruct(&c,
		validation.Field(&c.TTLMax, validation.Required, validation.Min(1)),
		validation.Field(&c.Driver, validation.Required, validation.In(DriverMemory, DriverRedis)),
		validation.Field(&c.Capacity, validation.When(memory, validation.Required, validation.Min(1))),
		validation.Field(&c.NumShards, validation.When(memory, validation.Required, validation.Min(1))),
		validation.Field(&c.EvictionPercentage, validation.When(memory, validation.Required, validation.Min(1), validation.Max(100))),
	)
	if err != nil {
		return err
	}

	if c.Driver == DriverRedis {
		return validation.ValidateStruct(&c.Redis,
			validation.Field(&c.Redis.Addr, validation.Required),
			validation.Field(&c.Redis.DB, validation.Min(0)),
		)
	}
	return nil
}

// NewTTL returns a TTL manager seeded from the configuration.
func (c Config) NewTTL() *TTL {
	return NewTTL(c.TTL, c.TTLMax)
}

// NewCacheService constructs the store selected by cfg.Driver.
func NewCacheService(cfg Config) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Driver == DriverRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := cacheinfra.DialRedis(ctx, cacheinfra.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := cacheinfra.NewSturdycService(cacheinfra.Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                time.Duration(cfg.TTLMax) * time.Minute,
		EvictionPercentage: cfg.EvictionPercentage,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewRedisCacheService wraps an existing redis client as a CacheService.
func NewRedisCacheService(client redis.UniversalClient) CacheService {
	return cacheinfra.NewRedisService(client)
}
