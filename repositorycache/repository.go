package repositorycache

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/keys"
)

var (
	// ErrMissingName is returned for descriptors with neither a name nor a prefix.
	ErrMissingName = errors.New("repositorycache: descriptor requires a name or prefix")
	// ErrMissingStore is returned when no cache service is provided.
	ErrMissingStore = errors.New("repositorycache: cache service is required")
)

// DefaultTemplates are used for descriptors that declare none.
var DefaultTemplates = []string{"{{id}}", "{{id}}.data"}

// Descriptor declares how an entity type is cached: its namespace, the key
// templates to evict on change and the lookups available to resolve an
// identifier into an entity.
type Descriptor struct {
	// Name of the entity type or repository, e.g. "User" or "UserRepository".
	Name string
	// Prefix overrides the namespace derived from Name.
	Prefix string
	// Templates evicted by BustCache. Defaults to DefaultTemplates.
	Templates []string
	// FindByID resolves numeric or string identifiers. Optional.
	FindByID keys.Lookup
	// FindBySlug resolves string identifiers after FindByID. Optional.
	FindBySlug keys.Lookup
}

// Repository is the cache facade composed into entity repositories.
// It is safe for concurrent use.
type Repository struct {
	name       string
	prefix     string
	templates  []keys.Template
	store      cache.CacheService
	ttl        *cache.TTL
	logger     *zap.Logger
	debug      bool
	prefixer   *keys.Prefixer
	expander   *keys.Expander
	findByID   keys.Lookup
	findBySlug keys.Lookup

	flight singleflight.Group
	fence  fence
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDebug enables diagnostics for busts that cannot resolve their resource.
func WithDebug(debug bool) Option {
	return func(r *Repository) {
		r.debug = debug
	}
}

// WithTTL shares ttl with the repository.
func WithTTL(ttl *cache.TTL) Option {
	return func(r *Repository) {
		r.ttl = ttl
	}
}

// WithTTLBounds gives the repository its own TTL with the given default and
// ceiling, in minutes.
func WithTTLBounds(def any, max int) Option {
	return func(r *Repository) {
		r.ttl = cache.NewTTL(def, max)
	}
}

// WithPrefixer replaces the default Prefixer.
func WithPrefixer(p *keys.Prefixer) Option {
	return func(r *Repository) {
		if p != nil {
			r.prefixer = p
		}
	}
}

// WithBatchSize sets how many related entities are read per batch during
// key expansion.
func WithBatchSize(n int) Option {
	return func(r *Repository) {
		r.expander = keys.NewExpander(n)
	}
}

// New builds a Repository for desc. Templates are validated here so a
// malformed template fails at registration instead of at eviction time.
func New(desc Descriptor, store cache.CacheService, opts ...Option) (*Repository, error) {
	if store == nil {
		return nil, ErrMissingStore
	}

	raw := desc.Templates
	if raw == nil {
		raw = DefaultTemplates
	}
	templates, err := keys.ParseAll(raw)
	if err != nil {
		return nil, fmt.Errorf("repositorycache: %s: %w", desc.Name, err)
	}

	r := &Repository{
		name:       desc.Name,
		templates:  templates,
		store:      store,
		logger:     zap.NewNop(),
		prefixer:   keys.NewPrefixer(),
		expander:   keys.NewExpander(keys.DefaultBatchSize),
		findByID:   desc.FindByID,
		findBySlug: desc.FindBySlug,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.ttl == nil {
		r.ttl = cache.NewTTL(cache.DefaultTTLMinutes, cache.DefaultTTLMaxMinutes)
	}

	r.prefix = desc.Prefix
	if r.prefix == "" {
		r.prefix = r.prefixer.For(desc.Name)
	}
	if r.prefix == "" {
		return nil, ErrMissingName
	}
	r.logger = r.logger.With(zap.String("prefix", r.prefix))

	return r, nil
}

// Name returns the descriptor name.
func (r *Repository) Name() string {
	return r.name
}

// Prefix returns the namespace keys are stored under.
func (r *Repository) Prefix() string {
	return r.prefix
}

// Templates returns the template sources evicted by BustCache.
func (r *Repository) Templates() []string {
	out := make([]string, len(r.templates))
	for i, tpl := range r.templates {
		out[i] = tpl.String()
	}
	return out
}

// TTL returns the repository TTL manager.
func (r *Repository) TTL() *cache.TTL {
	return r.ttl
}

// SetTTL stores min(ttl, max) as the default TTL, in minutes.
func (r *Repository) SetTTL(ttl any) {
	r.ttl.Set(ttl)
}

// Slug exposes keys.Slug so repositories build lookup keys the same way
// templates do, e.g. "email." + repo.Slug(email).
func (r *Repository) Slug(v any) string {
	return keys.Slug(v)
}

// Put stores value under the prefixed key. It returns false without touching
// the store when key is empty or value is absent (nil, empty string, empty
// slice or map). ttl is an optional one-off override in minutes.
func (r *Repository) Put(ctx context.Context, key string, value any, ttl any) bool {
	if key == "" || isAbsent(value) {
		return false
	}

	key = r.prepKey(key)
	if err := r.store.Set(ctx, key, value, r.ttl.Effective(ttl)); err != nil {
		r.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set is an alias for Put.
func (r *Repository) Set(ctx context.Context, key string, value any, ttl any) bool {
	return r.Put(ctx, key, value, ttl)
}

// Remember returns the value cached under the prefixed key, calling fn on a
// miss and caching its result with the repository TTL.
//
// Concurrent callers missing the same key share a single fn call. fn runs
// with a context that keeps ctx values but not its cancellation, and each
// caller stops waiting when its own ctx is done. A value computed while the
// key was being evicted is returned to its callers but not written back.
//
// Remote stores hand back encoded values on a hit, so the result type can
// differ between a hit and a miss. Use the generic Remember, or decode the
// result with cache.Decode.
func (r *Repository) Remember(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if fn == nil {
		return nil, errors.New("repositorycache: remember requires a fetch function")
	}
	if key == "" {
		return fn(ctx)
	}

	key = r.prepKey(key)
	epoch := r.fence.epoch(key)
	shared := context.WithoutCancel(ctx)

	ch := r.flight.DoChan(flightKey(key, epoch), func() (any, error) {
		cached, ok, err := r.store.Get(shared, key)
		if err != nil {
			r.logger.Warn("cache read failed, using source", zap.String("key", key), zap.Error(err))
		} else if ok {
			return cached, nil
		}

		value, err := fn(shared)
		if err != nil {
			return nil, err
		}
		if isAbsent(value) {
			return value, nil
		}

		written, err := r.fence.commit(key, epoch, func() error {
			return r.store.Set(shared, key, value, r.ttl.Duration())
		})
		switch {
		case err != nil:
			r.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		case !written:
			r.logger.Debug("skipped cache write for evicted key", zap.String("key", key))
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Remember is the typed form of Repository.Remember.
func Remember[T any](ctx context.Context, r *Repository, key string, fn cache.FetchFn[T]) (T, error) {
	v, err := r.Remember(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return cache.Decode[T](v)
}

// Forget evicts the prefixed key. Forgetting an absent key succeeds.
func (r *Repository) Forget(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return r.evict(ctx, r.prepKey(key))
}

// Keys returns the keys BustCache would evict for entity.
func (r *Repository) Keys(ctx context.Context, entity any) ([]string, error) {
	e, ok := asEntity(entity)
	if !ok {
		return nil, nil
	}
	return r.expand(ctx, e)
}

// BustCache evicts every key derived from resource. resource may be an
// entity, a struct, a map of fields or an identifier; identifiers are
// resolved with FindByID and then, for strings, FindBySlug.
//
// An unresolvable resource evicts nothing. Eviction is best effort: a failed
// delete does not stop the remaining ones, and the failures are returned
// joined. The evicted keys are returned.
func (r *Repository) BustCache(ctx context.Context, resource any) ([]string, error) {
	entity, err := r.resolve(ctx, resource)
	if err != nil {
		if r.debug {
			r.logger.Error("error busting cache", zap.Any("resource", resource), zap.Error(err))
		}
		return nil, err
	}
	if entity == nil {
		if r.debug {
			r.logger.Error("error busting cache, resource not found", zap.Any("resource", resource))
		}
		return nil, nil
	}

	var errs []error
	resolved, err := r.expand(ctx, entity)
	if err != nil {
		r.logger.Warn("partial key expansion", zap.Error(err))
		errs = append(errs, err)
	}

	evicted := make([]string, 0, len(resolved))
	for _, key := range resolved {
		if err := r.evict(ctx, key); err != nil {
			r.logger.Warn("cache eviction failed", zap.String("key", key), zap.Error(err))
			errs = append(errs, fmt.Errorf("forget %s: %w", key, err))
			continue
		}
		evicted = append(evicted, key)
	}

	r.logger.Debug("cache busted", zap.Strings("keys", evicted))
	return evicted, errors.Join(errs...)
}

// expand derives the keys of e in the facade namespace, where Put and
// Remember write, and in the entity's storage namespace when it differs.
func (r *Repository) expand(ctx context.Context, e keys.Entity) ([]string, error) {
	prefixes := []string{r.prefix}
	if storage := keys.EntityPrefix(e, r.prefix); storage != r.prefix {
		prefixes = append(prefixes, storage)
	}
	return r.expander.ExpandIn(ctx, e, prefixes, r.templates)
}

func (r *Repository) evict(ctx context.Context, key string) error {
	return r.fence.invalidate(key, func() error {
		return r.store.Delete(ctx, key)
	})
}

func (r *Repository) prepKey(key string) string {
	return keys.PrefixKey(r.prefix, key)
}

func (r *Repository) resolve(ctx context.Context, resource any) (keys.Entity, error) {
	if isNilValue(resource) {
		return nil, nil
	}
	if e, ok := asEntity(resource); ok {
		return e, nil
	}

	id := keys.Stringify(resource)
	if id == "" {
		return nil, nil
	}

	if r.findByID != nil {
		e, err := r.findByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find by id %q: %w", id, err)
		}
		if !isNilValue(e) {
			return e, nil
		}
	}

	if _, isString := resource.(string); isString && r.findBySlug != nil {
		e, err := r.findBySlug(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find by slug %q: %w", id, err)
		}
		if !isNilValue(e) {
			return e, nil
		}
	}

	return nil, nil
}

// asEntity reports whether v carries fields: an Entity, a field map or a
// struct. Scalars are identifiers, not entities.
func asEntity(v any) (keys.Entity, bool) {
	if isNilValue(v) {
		return nil, false
	}

	switch t := v.(type) {
	case keys.Entity:
		return t, true
	case map[string]any:
		return keys.Record{Fields: t}, true
	}

	rt := reflect.TypeOf(v)
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() == reflect.Struct {
		return keys.Struct(v), true
	}
	return nil, false
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isAbsent(v any) bool {
	if isNilValue(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
