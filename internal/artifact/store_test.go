package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCanonicalJSONDeterministic(t *testing.T) {
	first, err := CanonicalJSON(map[string]any{"b": 2, "a": []string{"x"}, "c": map[string]any{"z": 1, "y": 2}})
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	second, err := CanonicalJSON(map[string]any{"c": map[string]any{"y": 2, "z": 1}, "a": []string{"x"}, "b": 2})
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("identical logical content produced different bytes:\n%s\n%s", first, second)
	}
	if !bytes.HasSuffix(first, []byte("\n")) {
		t.Error("canonical JSON must end with a newline")
	}
	if !strings.Contains(string(first), "\n  \"a\"") {
		t.Errorf("expected two-space indentation, got:\n%s", first)
	}
}

func TestCanonicalJSONStructAndMapAgree(t *testing.T) {
	type pair struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	fromStruct, err := CanonicalJSON(pair{B: "2", A: "1"})
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	fromMap, err := CanonicalJSON(map[string]string{"a": "1", "b": "2"})
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if !bytes.Equal(fromStruct, fromMap) {
		t.Errorf("struct and map encodings differ:\n%s\n%s", fromStruct, fromMap)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "artifact.json")

	if err := WriteJSON(path, map[string]any{"scene_id": 3}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded struct {
		SceneID int `json:"scene_id"`
	}
	if err := ReadJSON(path, &decoded); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if decoded.SceneID != 3 {
		t.Errorf("scene_id = %d, want 3", decoded.SceneID)
	}
}

func TestReadOptional(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := ReadOptional(filepath.Join(dir, "absent.json"))
	if err != nil {
		t.Fatalf("absent file should not error: %v", err)
	}
	if ok {
		t.Error("absent file reported present")
	}

	path := filepath.Join(dir, "present.json")
	if err := os.WriteFile(path, []byte(`{"x":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	raw, ok, err := ReadOptional(path)
	if err != nil || !ok {
		t.Fatalf("present file: ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"x":1}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestWriteTextNormalizesTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.md")

	if err := WriteText(path, "A paragraph.\n\n\n"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "A paragraph.\n" {
		t.Errorf("content = %q", data)
	}
}

func TestHashTextStable(t *testing.T) {
	if HashText("abc") != HashText("abc") {
		t.Error("hash not stable")
	}
	if HashText("abc") == HashText("abd") {
		t.Error("hash collision on different inputs")
	}
	if len(HashText("")) != 64 {
		t.Error("expected hex sha256 digest length 64")
	}
}
