package keys

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-entity-cache/pkg/testsupport"
)

type expandScenario struct {
	Name      string         `json:"name"`
	Prefix    string         `json:"prefix"`
	Fields    map[string]any `json:"fields"`
	Templates []string       `json:"templates"`
	Want      []string       `json:"want"`
}

func TestExpand_Scenarios(t *testing.T) {
	var scenarios []expandScenario
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("expand_scenarios.json"), &scenarios)

	if len(scenarios) == 0 {
		t.Fatal("expected scenarios in fixture")
	}

	x := NewExpander(0)
	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			templates, err := ParseAll(sc.Templates)
			if err != nil {
				t.Fatalf("ParseAll() failed: %v", err)
			}

			got, err := x.Expand(context.Background(), Record{Fields: sc.Fields}, sc.Prefix, templates)
			if err != nil {
				t.Fatalf("Expand() failed: %v", err)
			}
			if !reflect.DeepEqual(got, sc.Want) {
				t.Errorf("Expand() = %v, want %v", got, sc.Want)
			}
		})
	}
}

// countingRelation serves ids in batches and counts the calls.
type countingRelation struct {
	ids   []any
	calls atomic.Int32
	err   error
}

func (c *countingRelation) Batch(ctx context.Context, offset, limit int) ([]Entity, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	if offset >= len(c.ids) {
		return nil, nil
	}
	end := min(offset+limit, len(c.ids))
	out := make([]Entity, 0, end-offset)
	for _, id := range c.ids[offset:end] {
		out = append(out, Record{Fields: map[string]any{"id": id}})
	}
	return out, nil
}

func TestExpand_RelationValuesAreDeduplicated(t *testing.T) {
	rel := &countingRelation{ids: []any{5, 7, 7, 9}}
	post := Record{
		Fields:    map[string]any{"id": 1},
		Relations: map[string]Relation{"tags": rel},
	}

	got, err := NewExpander(0).Expand(context.Background(), post, "posts", []Template{MustParse("tag.{{rel:tags.id}}")})
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}

	want := []string{"posts.tag.5", "posts.tag.7", "posts.tag.9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestExpandIn_SeveralPrefixes(t *testing.T) {
	rel := &countingRelation{ids: []any{5, 7}}
	post := Record{
		Fields:    map[string]any{"id": 1},
		Relations: map[string]Relation{"tags": rel},
	}
	templates := []Template{MustParse("{{id}}"), MustParse("tag.{{rel:tags.id}}")}

	got, err := NewExpander(0).ExpandIn(context.Background(), post, []string{"posts", "blog_posts", "posts"}, templates)
	if err != nil {
		t.Fatalf("ExpandIn() failed: %v", err)
	}

	want := []string{
		"blog_posts.1", "blog_posts.tag.5", "blog_posts.tag.7",
		"posts.1", "posts.tag.5", "posts.tag.7",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandIn() = %v, want %v", got, want)
	}
	if calls := rel.calls.Load(); calls != 1 {
		t.Errorf("relation read %d times, want 1", calls)
	}
}

func TestExpand_RelationWithScalars(t *testing.T) {
	post := Record{
		Fields: map[string]any{"id": 1},
		Relations: map[string]Relation{"comments": Static{
			Record{Fields: map[string]any{"author": "Ann"}},
			Record{Fields: map[string]any{"author": "Bob"}},
			Record{Fields: map[string]any{}},
		}},
	}

	got, err := NewExpander(0).Expand(context.Background(), post, "posts", []Template{MustParse("{{id}}.by.{{rel:comments.author}}")})
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}

	want := []string{"posts.1.by.ann", "posts.1.by.bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestExpand_MissingRelationYieldsNoKeys(t *testing.T) {
	templates := []Template{MustParse("{{id}}"), MustParse("tag.{{rel:tags.id}}")}

	got, err := NewExpander(0).Expand(context.Background(), Record{Fields: map[string]any{"id": 1}}, "posts", templates)
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"posts.1"}) {
		t.Errorf("Expand() = %v, want only the scalar key", got)
	}
}

func TestExpand_BatchesRelation(t *testing.T) {
	ids := make([]any, 25)
	for i := range ids {
		ids[i] = i
	}
	rel := &countingRelation{ids: ids}
	post := Record{Fields: map[string]any{"id": 1}, Relations: map[string]Relation{"tags": rel}}

	got, err := NewExpander(10).Expand(context.Background(), post, "posts", []Template{MustParse("tag.{{rel:tags.id}}")})
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	if len(got) != 25 {
		t.Errorf("expected 25 keys, got %d", len(got))
	}
	if calls := rel.calls.Load(); calls != 3 {
		t.Errorf("expected 3 batch reads, got %d", calls)
	}
}

func TestExpand_ExactMultipleReadsTerminatingBatch(t *testing.T) {
	rel := &countingRelation{ids: []any{1, 2, 3, 4}}
	post := Record{Relations: map[string]Relation{"tags": rel}}

	got, err := NewExpander(2).Expand(context.Background(), post, "posts", []Template{MustParse("tag.{{rel:tags.id}}")})
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("expected 4 keys, got %v", got)
	}
	if calls := rel.calls.Load(); calls != 3 {
		t.Errorf("expected 3 batch reads, got %d", calls)
	}
}

func TestExpand_MemoizesRelationAcrossTemplates(t *testing.T) {
	rel := &countingRelation{ids: []any{1, 2}}
	post := Record{Fields: map[string]any{"id": 9}, Relations: map[string]Relation{"tags": rel}}

	templates := []Template{
		MustParse("tag.{{rel:tags.id}}"),
		MustParse("{{id}}.tag.{{rel:tags.id}}"),
	}
	got, err := NewExpander(0).Expand(context.Background(), post, "posts", templates)
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}

	want := []string{"posts.9.tag.1", "posts.9.tag.2", "posts.tag.1", "posts.tag.2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
	if calls := rel.calls.Load(); calls != 1 {
		t.Errorf("expected the relation to be read once, got %d", calls)
	}
}

func TestExpand_RelationErrorKeepsOtherKeys(t *testing.T) {
	boom := errors.New("boom")
	post := Record{
		Fields:    map[string]any{"id": 1},
		Relations: map[string]Relation{"tags": &countingRelation{err: boom}},
	}

	got, err := NewExpander(0).Expand(context.Background(), post, "posts",
		[]Template{MustParse("{{id}}"), MustParse("tag.{{rel:tags.id}}")})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined relation error, got %v", err)
	}
	if !reflect.DeepEqual(got, []string{"posts.1"}) {
		t.Errorf("Expand() = %v, want the scalar key", got)
	}
}

func TestExpand_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rel := &countingRelation{ids: []any{1, 2, 3}}
	post := Record{Relations: map[string]Relation{"tags": rel}}

	_, err := NewExpander(0).Expand(ctx, post, "posts", []Template{MustParse("tag.{{rel:tags.id}}")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls := rel.calls.Load(); calls != 0 {
		t.Errorf("expected no batch reads after cancellation, got %d", calls)
	}
}

func TestExpand_NilEntity(t *testing.T) {
	got, err := NewExpander(0).Expand(context.Background(), nil, "posts", []Template{MustParse("{{id}}")})
	if err != nil || got != nil {
		t.Errorf("Expand(nil) = %v, %v", got, err)
	}
}

func TestExpand_IsDeterministic(t *testing.T) {
	post := Record{
		Fields: map[string]any{"id": 1, "slug": "Hello World"},
		Relations: map[string]Relation{"tags": Static{
			Record{Fields: map[string]any{"id": 3}},
			Record{Fields: map[string]any{"id": 1}},
		}},
	}
	templates := []Template{MustParse("{{slug}}"), MustParse("{{id}}"), MustParse("tag.{{rel:tags.id}}")}

	x := NewExpander(1)
	first, err := x.Expand(context.Background(), post, "posts", templates)
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := x.Expand(context.Background(), post, "posts", templates)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Expand() not deterministic: %v vs %v", first, again)
		}
	}
}
