// Package keys derives cache keys from entities.
//
// # Templates
//
// A key template is a string with zero or more placeholders:
//
//	{{id}}                                  scalar field of the entity
//	{{id}}.organizations.{{rel:organizations.id}}  field of every related entity
//
// Templates are parsed once, when a repository is registered. Parse rejects
// unterminated placeholders, names outside [A-Za-z0-9_] and templates that
// reference more than one relation; nested or multi-relation expansion is not
// supported.
//
// # Expansion
//
// Expander.Expand resolves a template set against an Entity:
//
//	x := keys.NewExpander(keys.DefaultBatchSize)
//	tpls, _ := keys.ParseAll([]string{"{{id}}", "{{id}}.data", "email.{{email}}"})
//	user := keys.Record{Fields: map[string]any{"id": 42, "email": "a@b.com"}}
//	got, _ := x.Expand(ctx, user, "users", tpls)
//	// [users.42 users.42.data users.email.a-b-com]
//
// Substituted values are slugged with Slug. A template whose scalar field is
// missing is dropped rather than emitted with a literal placeholder. Relation
// values are read in batches and de-duplicated, and a template yields one key
// per distinct value.
//
// # Prefixes
//
// Prefixer derives a namespace from a repository or type name
// ("UserRepository" becomes "users"); entities implementing StorageNamer use
// their storage name instead. PrefixKey is idempotent.
package keys
