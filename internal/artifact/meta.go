package artifact

import "time"

// Meta is the reproducibility record written alongside every generated
// artifact. It is audit output only; the pipeline never reads it back.
type Meta struct {
	CreatedAt   string            `json:"created_at"`
	Model       string            `json:"model"`
	Backend     string            `json:"backend,omitempty"`
	Input       string            `json:"input,omitempty"`
	InputHash   string            `json:"input_hash,omitempty"`
	InputHashes map[string]string `json:"input_hashes,omitempty"`
	RunID       string            `json:"run_id,omitempty"`
	Budget      int               `json:"budget,omitempty"`
	Resolution  string            `json:"resolution,omitempty"`
	Include     string            `json:"include,omitempty"`
	Chapter     int               `json:"chapter,omitempty"`
	TargetWords int               `json:"target_words,omitempty"`
	Length      string            `json:"length,omitempty"`
}

// Timestamp is the canonical created_at format: UTC RFC 3339.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
