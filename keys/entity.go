package keys

import (
	"context"
	"reflect"
	"strings"
)

// Entity exposes the scalar fields placeholders are resolved against.
// A nil value is reported as absent.
type Entity interface {
	Field(name string) (any, bool)
}

// Relation is a one-to-many accessor read in bounded batches.
// A batch shorter than limit marks the end of the relation.
type Relation interface {
	Batch(ctx context.Context, offset, limit int) ([]Entity, error)
}

// RelationHolder is implemented by entities that expose named relations.
type RelationHolder interface {
	Relation(name string) (Relation, bool)
}

// StorageNamer is implemented by entities that know the name of the table or
// collection backing them.
type StorageNamer interface {
	StorageName() string
}

// Lookup resolves an identifier to an entity. A missing entity is reported
// as (nil, nil).
type Lookup func(ctx context.Context, identifier string) (Entity, error)

// Record is a map backed Entity.
type Record struct {
	Fields    map[string]any
	Relations map[string]Relation
	Table     string
}

// Field implements Entity.
func (r Record) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	if !ok || isNil(v) {
		return nil, false
	}
	return v, true
}

// Relation implements RelationHolder.
func (r Record) Relation(name string) (Relation, bool) {
	rel, ok := r.Relations[name]
	return rel, ok && rel != nil
}

// StorageName implements StorageNamer.
func (r Record) StorageName() string {
	return r.Table
}

// Static is an in-memory Relation.
type Static []Entity

// Batch implements Relation.
func (s Static) Batch(ctx context.Context, offset, limit int) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset >= len(s) {
		return nil, nil
	}
	end := min(offset+limit, len(s))
	return s[offset:end], nil
}

// RelationFunc adapts a function to the Relation interface.
type RelationFunc func(ctx context.Context, offset, limit int) ([]Entity, error)

// Batch implements Relation.
func (f RelationFunc) Batch(ctx context.Context, offset, limit int) ([]Entity, error) {
	return f(ctx, offset, limit)
}

// Struct wraps a struct (or pointer to struct) as an Entity. Fields are
// matched by bun tag, json tag, snake_case Go name or Go name, in that order.
// Relation and StorageName calls are forwarded when v implements them.
func Struct(v any) Entity {
	if e, ok := v.(Entity); ok {
		return e
	}
	return structEntity{v: v}
}

type structEntity struct {
	v any
}

func (s structEntity) Field(name string) (any, bool) {
	rv := reflect.ValueOf(s.v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	idx, ok := fieldIndex(rv.Type(), name)
	if !ok {
		return nil, false
	}

	fv := rv.Field(idx)
	if !fv.CanInterface() {
		return nil, false
	}
	out := fv.Interface()
	if isNil(out) {
		return nil, false
	}
	return out, true
}

func (s structEntity) Relation(name string) (Relation, bool) {
	if holder, ok := s.v.(RelationHolder); ok {
		return holder.Relation(name)
	}
	return nil, false
}

func (s structEntity) StorageName() string {
	if namer, ok := s.v.(StorageNamer); ok {
		return namer.StorageName()
	}
	return ""
}

func fieldIndex(rt reflect.Type, name string) (int, bool) {
	matchers := []func(reflect.StructField) bool{
		func(f reflect.StructField) bool { return tagName(f.Tag.Get("bun")) == name },
		func(f reflect.StructField) bool { return tagName(f.Tag.Get("json")) == name },
		func(f reflect.StructField) bool { return toSnake(f.Name) == name },
		func(f reflect.StructField) bool { return f.Name == name },
	}

	for _, match := range matchers {
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() || f.Anonymous {
				continue
			}
			if match(f) {
				return i, true
			}
		}
	}
	return 0, false
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}

func isNil(v any) bool {
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
