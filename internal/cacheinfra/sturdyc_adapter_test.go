package cacheinfra

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}

	if cfg.TTL != 24*time.Hour {
		t.Errorf("expected TTL to be 24 hours, got %v", cfg.TTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{
			name:      "valid config",
			cfg:       DefaultConfig(),
			wantField: "",
		},
		{
			name: "zero capacity",
			cfg: Config{
				Capacity: 0, NumShards: 256, TTL: time.Minute, EvictionPercentage: 10,
			},
			wantField: "Capacity",
		},
		{
			name: "zero shards",
			cfg: Config{
				Capacity: 100, NumShards: 0, TTL: time.Minute, EvictionPercentage: 10,
			},
			wantField: "NumShards",
		},
		{
			name: "zero ttl",
			cfg: Config{
				Capacity: 100, NumShards: 256, TTL: 0, EvictionPercentage: 10,
			},
			wantField: "TTL",
		},
		{
			name: "eviction percentage out of range",
			cfg: Config{
				Capacity: 100, NumShards: 256, TTL: time.Minute, EvictionPercentage: 0,
			},
			wantField: "EvictionPercentage",
		},
		{
			name: "negative eviction interval",
			cfg: Config{
				Capacity: 100, NumShards: 256, TTL: time.Minute, EvictionPercentage: 10,
				EvictionInterval: -time.Second,
			},
			wantField: "EvictionInterval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected error on field %s, got %s", tt.wantField, cfgErr.Field)
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	cfg := DefaultConfig()
	if opts := cfg.ToSturdycOptions(); len(opts) != 0 {
		t.Errorf("expected no options for default config, got %d", len(opts))
	}

	cfg.EvictionInterval = time.Second
	if opts := cfg.ToSturdycOptions(); len(opts) != 1 {
		t.Errorf("expected eviction interval option, got %d", len(opts))
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = -1

	svc, err := NewSturdycService(cfg)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if svc != nil {
		t.Error("expected nil service on error")
	}
}

func TestSturdycService_GetSetDelete(t *testing.T) {
	svc, err := NewSturdycService(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := svc.Get(ctx, "users.1"); ok || err != nil {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	if err := svc.Set(ctx, "users.1", "alice", time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, ok, err := svc.Get(ctx, "users.1")
	if err != nil || !ok || got != "alice" {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}

	if keys := svc.Keys(); len(keys) != 1 || keys[0] != "users.1" {
		t.Errorf("Keys() = %v", keys)
	}

	if err := svc.Delete(ctx, "users.1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := svc.Delete(ctx, "users.1"); err != nil {
		t.Fatalf("second Delete() failed: %v", err)
	}

	if _, ok, _ := svc.Get(ctx, "users.1"); ok {
		t.Error("expected miss after delete")
	}
}

func TestSturdycService_StoresFalsyValues(t *testing.T) {
	svc, err := NewSturdycService(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	_ = svc.Set(ctx, "flags.enabled", false, time.Minute)
	_ = svc.Set(ctx, "counters.total", 0, time.Minute)

	if v, ok, _ := svc.Get(ctx, "flags.enabled"); !ok || v != false {
		t.Errorf("expected cached false, got %v, %v", v, ok)
	}
	if v, ok, _ := svc.Get(ctx, "counters.total"); !ok || v != 0 {
		t.Errorf("expected cached 0, got %v, %v", v, ok)
	}
}

func TestSturdycService_PerEntryExpiry(t *testing.T) {
	svc, err := NewSturdycService(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_ = svc.Set(ctx, "short", "a", time.Minute)
	_ = svc.Set(ctx, "long", "b", time.Hour)

	now = now.Add(2 * time.Minute)

	if _, ok, _ := svc.Get(ctx, "short"); ok {
		t.Error("expected short entry to expire")
	}
	if _, ok, _ := svc.Get(ctx, "long"); !ok {
		t.Error("expected long entry to be present")
	}
	if keys := svc.Keys(); len(keys) != 1 {
		t.Errorf("expected expired entry to be removed, keys = %v", keys)
	}
}

func TestSturdycService_TTLCappedByClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Minute

	svc, err := NewSturdycService(cfg)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_ = svc.Set(ctx, "users.1", "alice", 24*time.Hour)
	_ = svc.Set(ctx, "users.2", "bob", 0)

	now = now.Add(90 * time.Second)

	if _, ok, _ := svc.Get(ctx, "users.1"); ok {
		t.Error("expected ttl to be capped at the client ttl")
	}
	if _, ok, _ := svc.Get(ctx, "users.2"); ok {
		t.Error("expected zero ttl to use the client ttl")
	}
}
