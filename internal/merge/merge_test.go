package merge

import (
	"reflect"
	"testing"
)

func TestMergeScalarOverride(t *testing.T) {
	tests := []struct {
		name     string
		base     any
		override any
		want     any
	}{
		{"string replaces string", "old", "new", "new"},
		{"number replaces number", 1.0, 2.0, 2.0},
		{"type mismatch map vs scalar", map[string]any{"a": 1.0}, "flat", "flat"},
		{"type mismatch list vs map", []any{"x"}, map[string]any{"a": 1.0}, map[string]any{"a": 1.0}},
		{"nil override wins", "value", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.base, tt.override)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge(%v, %v) = %v, want %v", tt.base, tt.override, got, tt.want)
			}
		})
	}
}

func TestMergeMapsKeywise(t *testing.T) {
	base := map[string]any{
		"title": "Untitled",
		"constraints": map[string]any{
			"must":     []any{"a"},
			"must_not": []any{},
		},
	}
	override := map[string]any{
		"title": "The Hollow Light",
		"constraints": map[string]any{
			"must": []any{"b"},
		},
		"tone": []any{"bleak"},
	}

	got := Merge(base, override)
	want := map[string]any{
		"title": "The Hollow Light",
		"constraints": map[string]any{
			"must":     []any{"a", "b"},
			"must_not": []any{},
		},
		"tone": []any{"bleak"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
}

func TestMergeSliceUnion(t *testing.T) {
	base := []any{"a", "b", "c"}
	override := []any{"b", "d", "a", "e"}

	got := Merge(base, override)
	want := []any{"a", "b", "c", "d", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
}

func TestMergeSliceUnionDeepEquality(t *testing.T) {
	base := []any{map[string]any{"id": "x"}}
	override := []any{map[string]any{"id": "x"}, map[string]any{"id": "y"}}

	got := Merge(base, override).([]any)
	if len(got) != 2 {
		t.Fatalf("expected deduplicated union of 2 elements, got %v", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	trees := []any{
		"scalar",
		[]any{"a", map[string]any{"k": []any{1.0, 2.0}}},
		map[string]any{
			"a": []any{"x", "y"},
			"b": map[string]any{"c": nil, "d": 3.5},
		},
	}
	for _, tree := range trees {
		if got := Merge(tree, tree); !reflect.DeepEqual(got, tree) {
			t.Errorf("Merge(x, x) = %v, want %v", got, tree)
		}
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"list": []any{"a"}}
	override := map[string]any{"list": []any{"b"}}

	Merge(base, override)

	if !reflect.DeepEqual(base["list"], []any{"a"}) {
		t.Errorf("base mutated: %v", base)
	}
	if !reflect.DeepEqual(override["list"], []any{"b"}) {
		t.Errorf("override mutated: %v", override)
	}
}
