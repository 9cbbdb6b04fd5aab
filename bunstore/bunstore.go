// Package bunstore adapts uptrace/bun models and go-repository-bun
// repositories to the entity interfaces of the keys package.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-entity-cache/keys"
)

// TableName returns the table bun maps model to, or "" for non struct values.
func TableName(db *bun.DB, model any) string {
	typ := reflect.TypeOf(model)
	if typ == nil {
		return ""
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return ""
	}
	return db.Table(typ).Name
}

// Model is a bun record seen as a keys.Entity. Its storage name is the bun
// table name, which the facade uses as the key prefix.
type Model struct {
	entity    keys.Entity
	table     string
	relations map[string]keys.Relation
}

// Bind wraps record. relations may be nil.
func Bind(db *bun.DB, record any, relations map[string]keys.Relation) *Model {
	return &Model{
		entity:    keys.Struct(record),
		table:     TableName(db, record),
		relations: relations,
	}
}

// Binder returns a function binding records of T, with relations built per
// record by relations (which may be nil).
func Binder[T any](db *bun.DB, relations func(T) map[string]keys.Relation) func(T) keys.Entity {
	return func(record T) keys.Entity {
		var rels map[string]keys.Relation
		if relations != nil {
			rels = relations(record)
		}
		return Bind(db, record, rels)
	}
}

// Field implements keys.Entity.
func (m *Model) Field(name string) (any, bool) {
	return m.entity.Field(name)
}

// Relation implements keys.RelationHolder.
func (m *Model) Relation(name string) (keys.Relation, bool) {
	rel, ok := m.relations[name]
	return rel, ok && rel != nil
}

// StorageName implements keys.StorageNamer.
func (m *Model) StorageName() string {
	return m.table
}

// Query returns a relation reading T rows page by page. build narrows the
// query; order must give a stable ordering for offset paging.
func Query[T any](db bun.IDB, order string, build func(*bun.SelectQuery) *bun.SelectQuery) keys.Relation {
	return keys.RelationFunc(func(ctx context.Context, offset, limit int) ([]keys.Entity, error) {
		var rows []T
		q := db.NewSelect().Model(&rows).Limit(limit).Offset(offset)
		if order != "" {
			q = q.Order(order)
		}
		if build != nil {
			q = build(q)
		}
		if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		out := make([]keys.Entity, len(rows))
		for i := range rows {
			out[i] = keys.Struct(&rows[i])
		}
		return out, nil
	})
}

// HasMany returns the rows of T whose column equals value.
func HasMany[T any](db bun.IDB, column string, value any, order string) keys.Relation {
	return Query[T](db, order, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident(column), value)
	})
}

// IDGetter is the subset of repository.Repository used for id lookups.
type IDGetter[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
}

// IdentifierGetter is the subset of repository.Repository used for slug lookups.
type IdentifierGetter[T any] interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error)
}

// Lookups builds keys.Lookup functions over a repository.
type Lookups[T any] struct {
	// Bind turns a record into an entity. Defaults to keys.Struct.
	Bind func(T) keys.Entity
	// NotFound reports errors that mean "no such record". Defaults to
	// matching sql.ErrNoRows.
	NotFound func(error) bool
}

// ByID resolves identifiers with repo.GetByID.
func (l Lookups[T]) ByID(repo IDGetter[T]) keys.Lookup {
	return l.lookup(repo.GetByID)
}

// ByIdentifier resolves identifiers with repo.GetByIdentifier.
func (l Lookups[T]) ByIdentifier(repo IdentifierGetter[T]) keys.Lookup {
	return l.lookup(repo.GetByIdentifier)
}

func (l Lookups[T]) lookup(get func(context.Context, string, ...repository.SelectCriteria) (T, error)) keys.Lookup {
	bind := l.Bind
	if bind == nil {
		bind = func(record T) keys.Entity { return keys.Struct(record) }
	}
	notFound := l.NotFound
	if notFound == nil {
		notFound = func(err error) bool { return errors.Is(err, sql.ErrNoRows) }
	}

	return func(ctx context.Context, identifier string) (keys.Entity, error) {
		record, err := get(ctx, identifier)
		if err != nil {
			if notFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return bind(record), nil
	}
}
