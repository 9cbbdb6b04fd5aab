// Package repositorycache provides the cache facade entity repositories are
// built on.
//
// # Overview
//
// A Repository is created from a Descriptor: the entity type name (or an
// explicit prefix), the key templates evicted when an entity changes, and the
// lookups able to turn an identifier into an entity. It is composed into
// entity specific repositories rather than embedded as a base type.
//
//	users, err := repositorycache.New(repositorycache.Descriptor{
//		Name:      "User",
//		Templates: []string{"{{id}}", "{{id}}.data", "email.{{email}}"},
//		FindByID:  findUser,
//	}, store, repositorycache.WithLogger(logger))
//
//	user, err := repositorycache.Remember(ctx, users, "42", func(ctx context.Context) (*User, error) {
//		return db.FindUser(ctx, 42)
//	})
//
//	// after an update
//	evicted, err := users.BustCache(ctx, user)
//	// [users.42 users.42.data users.email.a-b-com]
//
// # Read-through
//
// Remember prefixes the key, returns the cached value on a hit and calls the
// fetch function on a miss. Concurrent misses on the same key share one fetch
// (single-flight). Writes are fenced against evictions: a value computed while
// BustCache or Forget evicted the key is returned to the callers that asked
// for it but is not written back, so a bust that completed before a later
// Remember is never undone by an older computation.
//
// # Invalidation
//
// BustCache accepts an entity, a struct, a field map or an identifier. The
// identifier is resolved with FindByID and then FindBySlug; when neither finds
// an entity nothing is evicted, and the failure is logged if debug is enabled.
// Keys are expanded with the keys package under the facade prefix and, when
// the entity has a different storage name, under that name as well. Every key
// is attempted even if some deletes fail.
//
// # Decorating go-repository-bun
//
// CachedRepository wraps a go-repository-bun Repository[T]: GetByID reads
// through the facade and single record writes bust the record's keys.
// Criteria based deletes cannot be targeted and pass through untouched.
//
// # Registry
//
// Registry keeps one facade per entity type, built with shared options and
// validated at registration.
package repositorycache
