package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisConfig holds the connection settings for the redis adapter.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Validate checks the redis settings.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "Redis.Addr", Message: "must not be empty"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "Redis.DB", Message: "must be non-negative"}
	}
	return nil
}

// Encoded is a msgpack payload read back from redis. Callers decode it into
// the type they stored.
type Encoded []byte

// Decode unmarshals the payload into dest.
func (e Encoded) Decode(dest any) error {
	return msgpack.Unmarshal(e, dest)
}

// redisService stores msgpack encoded values in redis with native key TTLs.
type redisService struct {
	client redis.UniversalClient
}

// NewRedisService wraps an existing redis client.
func NewRedisService(client redis.UniversalClient) *redisService {
	return &redisService{client: client}
}

// DialRedis connects to redis using cfg and verifies the connection.
func DialRedis(ctx context.Context, cfg RedisConfig) (*redisService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisService{client: client}, nil
}

// Get returns the encoded payload stored under key.
func (s *redisService) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return Encoded(data), true, nil
}

// Set encodes value and stores it under key with ttl.
func (s *redisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. DEL on a missing key is not an error in redis.
func (s *redisService) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *redisService) Close() error {
	return s.client.Close()
}
