package keys

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedTemplate is returned for templates that do not follow the
	// placeholder grammar.
	ErrMalformedTemplate = errors.New("malformed key template")
	// ErrMultipleRelations is returned for templates that reference more than
	// one relation placeholder. Only single level expansion is supported.
	ErrMultipleRelations = errors.New("key template references more than one relation")
)

const (
	openDelim      = "{{"
	closeDelim     = "}}"
	relationMarker = "rel:"
)

// placeholder is one {{...}} site in a template.
type placeholder struct {
	token    string
	relation string
	field    string
}

// Template is a parsed key template. Placeholders are either scalar,
// {{field}}, or relational, {{rel:relation.field}}, where every name matches
// [A-Za-z0-9_]+.
type Template struct {
	raw      string
	scalars  []placeholder
	relation *placeholder
}

// Parse validates raw and returns its Template.
func Parse(raw string) (Template, error) {
	if raw == "" {
		return Template{}, fmt.Errorf("%w: empty template", ErrMalformedTemplate)
	}

	tpl := Template{raw: raw}
	seen := map[string]bool{}

	rest := raw
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			break
		}
		body := rest[start+len(openDelim):]
		end := strings.Index(body, closeDelim)
		if end < 0 {
			return Template{}, fmt.Errorf("%w: %q: unterminated placeholder", ErrMalformedTemplate, raw)
		}
		body = body[:end]
		rest = rest[start+len(openDelim)+end+len(closeDelim):]

		ph, err := parsePlaceholder(body)
		if err != nil {
			return Template{}, fmt.Errorf("%w: %q: %v", ErrMalformedTemplate, raw, err)
		}
		if seen[ph.token] {
			continue
		}
		seen[ph.token] = true

		if ph.relation == "" {
			tpl.scalars = append(tpl.scalars, ph)
			continue
		}
		if tpl.relation != nil {
			return Template{}, fmt.Errorf("%w: %q", ErrMultipleRelations, raw)
		}
		tpl.relation = &ph
	}

	return tpl, nil
}

// MustParse is like Parse but panics on error. Use it for templates declared
// as package level values.
func MustParse(raw string) Template {
	tpl, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return tpl
}

// ParseAll parses every template, failing on the first invalid one.
func ParseAll(raws []string) ([]Template, error) {
	out := make([]Template, 0, len(raws))
	for i, raw := range raws {
		tpl, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		out = append(out, tpl)
	}
	return out, nil
}

// String returns the template source.
func (t Template) String() string {
	return t.raw
}

// Fields returns the scalar field names referenced by the template.
func (t Template) Fields() []string {
	out := make([]string, len(t.scalars))
	for i, ph := range t.scalars {
		out[i] = ph.field
	}
	return out
}

// Relation returns the relation placeholder, if any.
func (t Template) Relation() (relation, field string, ok bool) {
	if t.relation == nil {
		return "", "", false
	}
	return t.relation.relation, t.relation.field, true
}

func parsePlaceholder(body string) (placeholder, error) {
	ph := placeholder{token: openDelim + body + closeDelim}

	ref, isRelation := strings.CutPrefix(body, relationMarker)
	if !isRelation {
		if !isIdent(body) {
			return ph, fmt.Errorf("invalid field name %q", body)
		}
		ph.field = body
		return ph, nil
	}

	relation, field, found := strings.Cut(ref, ".")
	if !found || !isIdent(relation) || !isIdent(field) {
		return ph, fmt.Errorf("invalid relation placeholder %q, want rel:relation.field", body)
	}
	ph.relation = relation
	ph.field = field
	return ph, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
