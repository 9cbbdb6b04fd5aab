package di

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-cache/bunstore"
	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/keys"
	"github.com/goliatone/go-entity-cache/repositorycache"
)

// Container wires the cache store, logger and descriptor registry.
// Every repository registered through it gets its own TTL seeded from the
// configuration and shares the store.
type Container struct {
	config   cache.Config
	store    cache.CacheService
	logger   *zap.Logger
	registry *repositorycache.Registry
}

// NewContainer creates a container for cfg. A nil logger disables logging.
func NewContainer(cfg cache.Config, logger *zap.Logger) (*Container, error) {
	store, err := cache.NewCacheService(cfg)
	if err != nil {
		return nil, err
	}
	return NewContainerWithStore(cfg, store, logger), nil
}

// NewContainerWithStore creates a container around an existing store.
func NewContainerWithStore(cfg cache.Config, store cache.CacheService, logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := repositorycache.NewRegistry(store,
		repositorycache.WithLogger(logger),
		repositorycache.WithDebug(cfg.Debug),
		repositorycache.WithTTLBounds(cfg.TTL, cfg.TTLMax),
	)

	return &Container{
		config:   cfg,
		store:    store,
		logger:   logger,
		registry: registry,
	}
}

// NewContainerFromViper loads the configuration from v.
func NewContainerFromViper(v *viper.Viper, logger *zap.Logger) (*Container, error) {
	cfg, err := cache.LoadConfig(v)
	if err != nil {
		return nil, err
	}
	return NewContainer(cfg, logger)
}

// NewContainerWithDefaults creates a container using the default in-memory
// configuration.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(cache.DefaultConfig(), nil)
}

// CacheService returns the shared store.
func (c *Container) CacheService() cache.CacheService {
	return c.store
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Registry returns the descriptor registry.
func (c *Container) Registry() *repositorycache.Registry {
	return c.registry
}

// Register builds the facade for desc.
func (c *Container) Register(desc repositorycache.Descriptor, opts ...repositorycache.Option) (*repositorycache.Repository, error) {
	return c.registry.Register(desc, opts...)
}

// Repository returns the facade registered under name.
func (c *Container) Repository(name string) (*repositorycache.Repository, bool) {
	return c.registry.Get(name)
}

// NewCachedRepository registers desc and wraps base with the resulting
// facade. Missing lookups are filled from base: GetByID for ids and
// GetByIdentifier for slugs, both binding records with bind (keys.Struct
// when nil).
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
func NewCachedRepository[T any](c *Container, base repository.Repository[T], desc repositorycache.Descriptor, bind func(T) keys.Entity) (*repositorycache.CachedRepository[T], error) {
	lookups := bunstore.Lookups[T]{Bind: bind}
	if desc.FindByID == nil {
		desc.FindByID = lookups.ByID(base)
	}
	if desc.FindBySlug == nil {
		desc.FindBySlug = lookups.ByIdentifier(base)
	}

	facade, err := c.registry.Register(desc)
	if err != nil {
		return nil, err
	}
	return repositorycache.NewCached(base, facade, repositorycache.WithBinder(bind)), nil
}
