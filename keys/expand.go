package keys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultBatchSize bounds how many related entities are held in memory while
// collecting relation values.
const DefaultBatchSize = 10

// Expander turns an entity and a template set into concrete cache keys.
type Expander struct {
	batchSize int
}

// NewExpander returns an Expander reading relations batchSize entities at a
// time. A non-positive batchSize uses DefaultBatchSize.
func NewExpander(batchSize int) *Expander {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Expander{batchSize: batchSize}
}

// BatchSize returns the relation batch size.
func (x *Expander) BatchSize() int {
	return x.batchSize
}

// Expand resolves templates against e and returns the sorted, de-duplicated
// set of keys, each in the prefix namespace.
//
// A template with a scalar field the entity lacks is excluded. A relation
// placeholder yields one key per distinct slugged value; a missing relation
// or an empty one yields no keys. Relation read errors are joined into the
// returned error and the keys of the remaining templates are still returned.
func (x *Expander) Expand(ctx context.Context, e Entity, prefix string, templates []Template) ([]string, error) {
	return x.ExpandIn(ctx, e, []string{prefix}, templates)
}

// ExpandIn is Expand for several namespaces at once. Relations are read a
// single time and every key is emitted once per distinct prefix.
func (x *Expander) ExpandIn(ctx context.Context, e Entity, prefixes []string, templates []Template) ([]string, error) {
	if e == nil {
		return nil, nil
	}

	bare, err := x.bareKeys(ctx, e, templates)

	set := map[string]struct{}{}
	for _, prefix := range prefixes {
		for _, key := range bare {
			set[PrefixKey(prefix, key)] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, err
}

func (x *Expander) bareKeys(ctx context.Context, e Entity, templates []Template) ([]string, error) {
	var out []string
	memo := map[string][]string{}
	var errs []error

	for _, tpl := range templates {
		key, ok := substituteScalars(tpl, e)
		if !ok {
			continue
		}

		if tpl.relation == nil {
			out = append(out, key)
			continue
		}

		values, err := x.relationValues(ctx, e, *tpl.relation, memo)
		if err != nil {
			errs = append(errs, fmt.Errorf("expand %q: %w", tpl.raw, err))
			continue
		}
		for _, v := range values {
			out = append(out, strings.ReplaceAll(key, tpl.relation.token, v))
		}
	}
	return out, errors.Join(errs...)
}

func substituteScalars(tpl Template, e Entity) (string, bool) {
	key := tpl.raw
	for _, ph := range tpl.scalars {
		v, ok := e.Field(ph.field)
		if !ok {
			return "", false
		}
		slug := Slug(v)
		if slug == "" {
			return "", false
		}
		key = strings.ReplaceAll(key, ph.token, slug)
	}
	return key, true
}

func (x *Expander) relationValues(ctx context.Context, e Entity, ph placeholder, memo map[string][]string) ([]string, error) {
	memoKey := ph.relation + "." + ph.field
	if values, ok := memo[memoKey]; ok {
		return values, nil
	}

	holder, ok := e.(RelationHolder)
	if !ok {
		return nil, nil
	}
	rel, ok := holder.Relation(ph.relation)
	if !ok || rel == nil {
		return nil, nil
	}

	seen := map[string]struct{}{}
	var values []string
	for offset := 0; ; offset += x.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := rel.Batch(ctx, offset, x.batchSize)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", ph.relation, err)
		}

		for _, related := range batch {
			if related == nil {
				continue
			}
			v, ok := related.Field(ph.field)
			if !ok {
				continue
			}
			slug := Slug(v)
			if slug == "" {
				continue
			}
			if _, dup := seen[slug]; dup {
				continue
			}
			seen[slug] = struct{}{}
			values = append(values, slug)
		}

		if len(batch) < x.batchSize {
			break
		}
	}

	sort.Strings(values)
	memo[memoKey] = values
	return values, nil
}
