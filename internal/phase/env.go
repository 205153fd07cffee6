// Package phase implements the pipeline stages: seed resolution, spine
// and scene planning, beat planning, prose drafting, and continuity
// checking. Each stage reads artifacts, optionally consults the backend,
// and persists canonical JSON plus a metadata sidecar.
package phase

import (
	"encoding/json"
	"log/slog"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

// Env bundles what every stage needs. Stages that never touch the
// backend simply ignore Client and Protocol.
type Env struct {
	Layout   artifact.Layout
	Client   agent.Chatter
	Protocol *generate.Protocol
	Schemas  *schema.Validator
	Logger   *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// canonicalText renders a value the way artifacts are stored, which is
// also how JSON is embedded in prompts: sorted keys, two-space indent.
func canonicalText(v any) string {
	data, err := artifact.CanonicalJSON(v)
	if err != nil {
		fallback, _ := json.Marshal(v)
		return string(fallback)
	}
	return string(data)
}
