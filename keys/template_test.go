package keys

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantFields   []string
		wantRelation string
		wantField    string
		wantErr      error
	}{
		{name: "literal", raw: "all", wantFields: []string{}},
		{name: "scalar", raw: "{{id}}", wantFields: []string{"id"}},
		{name: "scalars", raw: "{{id}}.data.{{locale}}", wantFields: []string{"id", "locale"}},
		{name: "repeated scalar", raw: "{{id}}.{{id}}", wantFields: []string{"id"}},
		{name: "relation", raw: "tag.{{rel:tags.id}}", wantFields: []string{}, wantRelation: "tags", wantField: "id"},
		{name: "repeated relation", raw: "{{rel:tags.id}}.{{rel:tags.id}}", wantFields: []string{}, wantRelation: "tags", wantField: "id"},
		{name: "empty", raw: "", wantErr: ErrMalformedTemplate},
		{name: "unterminated", raw: "{{id", wantErr: ErrMalformedTemplate},
		{name: "empty placeholder", raw: "{{}}", wantErr: ErrMalformedTemplate},
		{name: "invalid name", raw: "{{first name}}", wantErr: ErrMalformedTemplate},
		{name: "relation without field", raw: "{{rel:tags}}", wantErr: ErrMalformedTemplate},
		{name: "nested relation", raw: "{{rel:tags.owner.id}}", wantErr: ErrMalformedTemplate},
		{name: "two relations", raw: "{{rel:tags.id}}.{{rel:authors.id}}", wantErr: ErrMultipleRelations},
		{name: "same relation two fields", raw: "{{rel:tags.id}}.{{rel:tags.name}}", wantErr: ErrMultipleRelations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := Parse(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}

			if got := tpl.Fields(); !reflect.DeepEqual(got, tt.wantFields) {
				t.Errorf("Fields() = %v, want %v", got, tt.wantFields)
			}
			relation, field, ok := tpl.Relation()
			if ok != (tt.wantRelation != "") || relation != tt.wantRelation || field != tt.wantField {
				t.Errorf("Relation() = %q, %q, %v", relation, field, ok)
			}
			if tpl.String() != tt.raw {
				t.Errorf("String() = %q, want %q", tpl.String(), tt.raw)
			}
		})
	}
}

func TestParseAll_ReportsIndex(t *testing.T) {
	_, err := ParseAll([]string{"{{id}}", "{{id"})
	if !errors.Is(err, ErrMalformedTemplate) {
		t.Fatalf("expected ErrMalformedTemplate, got %v", err)
	}
	if got := err.Error(); got[:10] != "template 1" {
		t.Errorf("expected error to name template 1, got %q", got)
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustParse to panic")
		}
	}()
	MustParse("{{rel:a.b}}{{rel:c.d}}")
}
