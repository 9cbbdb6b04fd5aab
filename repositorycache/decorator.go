package repositorycache

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-cache/keys"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// CachedRepository decorates a go-repository-bun repository with the cache
// facade. GetByID reads through the "{{id}}" key; updates and deletes bust
// every template of the record, both before and after the change so keys
// built from fields that changed are evicted too. Everything else passes
// through to the base repository.
type CachedRepository[T any] struct {
	base    repository.Repository[T]
	cache   *Repository
	bind    func(T) keys.Entity
	idField string
}

// CachedOption configures a CachedRepository.
type CachedOption[T any] func(*CachedRepository[T])

// WithBinder sets how records are turned into entities. Defaults to keys.Struct.
func WithBinder[T any](bind func(T) keys.Entity) CachedOption[T] {
	return func(c *CachedRepository[T]) {
		if bind != nil {
			c.bind = bind
		}
	}
}

// WithIDField sets the field holding the record id. Defaults to "id".
func WithIDField[T any](field string) CachedOption[T] {
	return func(c *CachedRepository[T]) {
		if field != "" {
			c.idField = field
		}
	}
}

// NewCached wraps base with the cache facade.
func NewCached[T any](base repository.Repository[T], facade *Repository, opts ...CachedOption[T]) *CachedRepository[T] {
	c := &CachedRepository[T]{
		base:    base,
		cache:   facade,
		bind:    func(record T) keys.Entity { return keys.Struct(record) },
		idField: "id",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the facade used by the decorator.
func (c *CachedRepository[T]) Cache() *Repository {
	return c.cache
}

// GetByID reads through the cache. Calls with criteria bypass it since the
// criteria are not part of the key.
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	if len(criteria) > 0 {
		return c.base.GetByID(ctx, id, criteria...)
	}
	return Remember(ctx, c.cache, keys.Slug(id), func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id)
	})
}

func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.Get(ctx, criteria...)
}

func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.List(ctx, criteria...)
}

func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.Count(ctx, criteria...)
}

func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifier(ctx, identifier, criteria...)
}

// Create passes through; a new record has no cached keys yet.
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return c.base.Create(ctx, record, criteria...)
}

func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return c.base.CreateTx(ctx, tx, record, criteria...)
}

func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return c.base.CreateMany(ctx, records, criteria...)
}

func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return c.base.CreateManyTx(ctx, tx, records, criteria...)
}

func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	return c.base.GetOrCreate(ctx, record)
}

func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return c.base.GetOrCreateTx(ctx, tx, record)
}

// Update updates a record and busts the keys of its previous and new state.
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.snapshot(ctx, record)
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.bust(ctx, prior...)
		c.bust(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.snapshotTx(ctx, tx, record)
	result, err := c.base.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.bust(ctx, prior...)
		c.bust(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		c.bust(ctx, result...)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.bust(ctx, result...)
	}
	return result, err
}

func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.snapshot(ctx, record)
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.bust(ctx, prior...)
		c.bust(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	prior := c.snapshotTx(ctx, tx, record)
	result, err := c.base.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		c.bust(ctx, prior...)
		c.bust(ctx, result)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		c.bust(ctx, result...)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.bust(ctx, result...)
	}
	return result, err
}

func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.bust(ctx, record)
	}
	return err
}

func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.DeleteTx(ctx, tx, record)
	if err == nil {
		c.bust(ctx, record)
	}
	return err
}

// DeleteMany passes through. The deleted records are unknown so nothing can
// be evicted; callers should BustCache the affected records themselves.
func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	c.untargeted("DeleteMany")
	return c.base.DeleteMany(ctx, criteria...)
}

func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	c.untargeted("DeleteManyTx")
	return c.base.DeleteManyTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	c.untargeted("DeleteWhere")
	return c.base.DeleteWhere(ctx, criteria...)
}

func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	c.untargeted("DeleteWhereTx")
	return c.base.DeleteWhereTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.bust(ctx, record)
	}
	return err
}

func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		c.bust(ctx, record)
	}
	return err
}

func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// snapshot loads the stored version of record, bypassing the cache.
func (c *CachedRepository[T]) snapshot(ctx context.Context, record T) []T {
	id, ok := c.recordID(record)
	if !ok {
		return nil
	}
	prior, err := c.base.GetByID(ctx, id)
	if err != nil {
		return nil
	}
	return []T{prior}
}

func (c *CachedRepository[T]) snapshotTx(ctx context.Context, tx bun.IDB, record T) []T {
	id, ok := c.recordID(record)
	if !ok {
		return nil
	}
	prior, err := c.base.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil
	}
	return []T{prior}
}

func (c *CachedRepository[T]) recordID(record T) (string, bool) {
	e := c.bind(record)
	if e == nil {
		return "", false
	}
	v, ok := e.Field(c.idField)
	if !ok {
		return "", false
	}
	id := keys.Stringify(v)
	return id, id != ""
}

func (c *CachedRepository[T]) bust(ctx context.Context, records ...T) {
	for _, record := range records {
		e := c.bind(record)
		if e == nil {
			continue
		}
		if _, err := c.cache.BustCache(ctx, e); err != nil {
			c.cache.logger.Warn("cache bust after write failed", zap.Error(err))
		}
	}
}

func (c *CachedRepository[T]) untargeted(op string) {
	c.cache.logger.Debug("criteria based write, cached records are not evicted", zap.String("operation", op))
}
