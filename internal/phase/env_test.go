package phase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

func newTestEnv(t *testing.T, root string, mock *agent.MockClient) Env {
	t.Helper()
	schemas := schema.NewValidator()
	return Env{
		Layout:   artifact.NewLayout(root),
		Client:   mock,
		Protocol: generate.NewProtocol(mock, schemas, nil),
		Schemas:  schemas,
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const testSpecJSON = `{
  "title": "The Hollow Light",
  "logline": "A lighthouse keeper discovers the lamp is keeping something out.",
  "genre": ["horror"],
  "tone": ["dread"],
  "target_length": {"unit": "words", "value": 60000},
  "pov": "third_limited",
  "tense": "past",
  "constraints": {"must": ["keep the keeper isolated"], "must_not": ["explain the entity"]}
}`

const testSpineJSON = `{
  "acts": [
    {
      "act_no": 1,
      "summary": "Arrival and first signs.",
      "chapters": [
        {
          "chapter_no": 1,
          "goal": "Establish the lighthouse routine.",
          "turning_points": ["the lamp gutters"],
          "scenes": [1, 2]
        }
      ]
    }
  ]
}`
