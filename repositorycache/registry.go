package repositorycache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-entity-cache/cache"
)

// ErrAlreadyRegistered is returned when a descriptor name is registered twice.
var ErrAlreadyRegistered = errors.New("repositorycache: descriptor already registered")

// Registry maps entity type names to their cache facades. Descriptors are
// validated when registered; lookups are lock free.
type Registry struct {
	store cache.CacheService
	opts  []Option
	repos *xsync.MapOf[string, *Repository]
}

// NewRegistry returns a Registry whose repositories share store and opts.
func NewRegistry(store cache.CacheService, opts ...Option) *Registry {
	return &Registry{
		store: store,
		opts:  opts,
		repos: xsync.NewMapOf[string, *Repository](),
	}
}

// Register builds and stores the facade for desc. Options given here are
// applied after the registry wide ones.
func (r *Registry) Register(desc Descriptor, opts ...Option) (*Repository, error) {
	if desc.Name == "" {
		return nil, ErrMissingName
	}

	repo, err := New(desc, r.store, append(slices.Clone(r.opts), opts...)...)
	if err != nil {
		return nil, err
	}

	if _, loaded := r.repos.LoadOrStore(desc.Name, repo); loaded {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, desc.Name)
	}
	return repo, nil
}

// Get returns the facade registered under name.
func (r *Registry) Get(name string) (*Repository, bool) {
	return r.repos.Load(name)
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	var names []string
	r.repos.Range(func(name string, _ *Repository) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// BustCache evicts resource through the facade registered under name.
func (r *Registry) BustCache(ctx context.Context, name string, resource any) ([]string, error) {
	repo, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("repositorycache: no descriptor registered for %s", name)
	}
	return repo.BustCache(ctx, resource)
}
