package keys

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// DefaultSuffix is stripped from repository names before deriving a prefix.
const DefaultSuffix = "Repository"

// Separator joins a prefix and a key.
const Separator = "."

// Prefixer derives cache namespaces for entity types.
//
// Derivation strips the suffix, converts to lower snake case and pluralizes
// the result with standard English rules. Nouns the ruleset gets wrong must
// be registered with WithIrregular.
type Prefixer struct {
	suffix    string
	irregular map[string]string
}

// PrefixOption configures a Prefixer.
type PrefixOption func(*Prefixer)

// WithSuffix replaces DefaultSuffix.
func WithSuffix(suffix string) PrefixOption {
	return func(p *Prefixer) {
		p.suffix = suffix
	}
}

// WithIrregular maps a snake_case singular to an explicit plural.
func WithIrregular(singular, plural string) PrefixOption {
	return func(p *Prefixer) {
		p.irregular[toSnake(singular)] = plural
	}
}

// NewPrefixer returns a Prefixer configured with opts.
func NewPrefixer(opts ...PrefixOption) *Prefixer {
	p := &Prefixer{
		suffix:    DefaultSuffix,
		irregular: map[string]string{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// For derives the prefix for a type or repository name, e.g.
// "UserRepository" and "user" both become "users".
func (p *Prefixer) For(name string) string {
	base := name
	if p.suffix != "" && base != p.suffix {
		base = strings.TrimSuffix(base, p.suffix)
	}

	snake := toSnake(base)
	if snake == "" {
		return ""
	}

	if plural, ok := p.irregular[snake]; ok {
		return plural
	}
	return inflection.Plural(snake)
}

// ForEntity returns the entity's storage name when it exposes one, which
// keeps keys aligned with the store's own naming. Otherwise the prefix is
// derived from name.
func (p *Prefixer) ForEntity(e Entity, name string) string {
	return EntityPrefix(e, p.For(name))
}

// EntityPrefix returns the storage name of e, or fallback when e does not
// expose one.
func EntityPrefix(e Entity, fallback string) string {
	if namer, ok := e.(StorageNamer); ok {
		if table := namer.StorageName(); table != "" {
			return table
		}
	}
	return fallback
}

// PrefixKey prepends prefix to key unless key is already in that namespace.
// PrefixKey(p, PrefixKey(p, k)) == PrefixKey(p, k).
func PrefixKey(prefix, key string) string {
	if prefix == "" || key == prefix || strings.HasPrefix(key, prefix+Separator) {
		return key
	}
	return prefix + Separator + key
}
