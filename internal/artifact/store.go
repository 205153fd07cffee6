package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CanonicalJSON encodes v with deterministic key ordering, two-space
// indentation, and a trailing newline, so identical logical content always
// produces byte-identical files. Values are round-tripped through a generic
// tree so struct payloads and generated map payloads canonicalize the same
// way.
func CanonicalJSON(v any) ([]byte, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}
	var tree any
	if err := json.Unmarshal(encoded, &tree); err != nil {
		return nil, fmt.Errorf("canonicalizing artifact: %w", err)
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON persists v as canonical JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := CanonicalJSON(v)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteText persists prose content, normalizing to a single trailing
// newline.
func WriteText(path, content string) error {
	return writeFile(path, []byte(strings.TrimRight(content, "\n")+"\n"))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadJSON loads and decodes a required JSON artifact.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ReadOptional loads an artifact that is allowed to be absent. The boolean
// reports presence; a present-but-unreadable file is an error.
func ReadOptional(path string) (json.RawMessage, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, true, nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HashBytes returns the hex sha256 digest used for input tracking.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func HashText(text string) string {
	return HashBytes([]byte(text))
}
