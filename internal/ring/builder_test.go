package ring

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

func newTestBuilder(t *testing.T, root string, mock *agent.MockClient) *Builder {
	t.Helper()
	schemas := schema.NewValidator()
	protocol := generate.NewProtocol(mock, schemas, nil)
	return NewBuilder(artifact.NewLayout(root), mock, protocol, schemas, nil)
}

func writeArtifact(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedWorkspace lays out everything scene 2 needs, including a prior
// scene draft so the summary path is exercised.
func seedWorkspace(t *testing.T, root string) {
	t.Helper()
	layout := artifact.NewLayout(root)

	writeArtifact(t, layout.InputsSpec(), `{
  "title": "The Hollow Light",
  "logline": "A lighthouse keeper discovers the lamp is keeping something out.",
  "genre": ["horror"],
  "tone": ["dread"],
  "target_length": {"unit": "words", "value": 60000},
  "pov": "third_limited",
  "tense": "past",
  "constraints": {"must": ["keep the keeper isolated"], "must_not": ["explain the entity"]}
}`)

	writeArtifact(t, layout.InputsPlotIntent(), `{
  "plot_intent": {
    "core_arc": "denial to acceptance",
    "themes": ["isolation"],
    "central_question": "What is the lamp for?"
  }
}`)

	writeArtifact(t, layout.ScenePlan(2), `{
  "scene_id": 2,
  "chapter_no": 1,
  "title": "Lamp Room",
  "setting": {"location_id": "lamp_room", "time": "night", "mood_tags": ["claustrophobic"]},
  "cast": ["mara"],
  "goal": "Mara relights the lamp before moonrise.",
  "stakes": "The dark reaches the shore.",
  "beats_ref": "artifacts/scenes/scene_002.beats.json"
}`)

	writeArtifact(t, layout.SceneBeats(2), `{
  "scene_id": 2,
  "beats": [
    {"type": "entry", "description": "Mara climbs the lamp room stairs."},
    {"type": "turn", "description": "The foghorn answers itself."}
  ]
}`)

	writeArtifact(t, layout.SeedStyleProfile(), `{
  "profile_id": "quiet-horror-v1",
  "tone": ["clinical"],
  "horror_engine": {"taboos": ["gratuitous gore"]}
}`)

	writeArtifact(t, layout.ContinuityLocks(), `{
  "locks": [
    {"id": "l1", "statement": "Mara never leaves the lamp_room at night", "severity": "must", "tags": []},
    {"id": "l2", "statement": "The village stays submerged", "severity": "should", "tags": []}
  ]
}`)

	writeArtifact(t, layout.ContinuityFacts(), `{
  "facts": [
    "Mara buried her predecessor below the tide line",
    "The mainland ferry runs on Sundays"
  ]
}`)

	writeArtifact(t, filepath.Join(layout.WorldDir(), "tiny.json"), `{
  "glossary": [
    {"term": "foghorn", "definition": "The station's signal horn."},
    {"term": "wrack-lane", "definition": "A path through the kelp beds."}
  ]
}`)

	writeArtifact(t, filepath.Join(layout.CharactersDir(), "tiny.json"), `{
  "characters": [
    {"id": "mara", "name": "Mara", "role": "keeper", "voice_tics": [], "current_state": "steady", "wants_now": [], "taboos": []}
  ]
}`)

	writeArtifact(t, layout.CharacterState(1), `{
  "characters": {"mara": {"current_state": "exhausted"}}
}`)

	writeArtifact(t, layout.SceneDraft(1), "Mara rowed out at dusk and found the door unlocked.\n")
}

func TestBuildEndToEnd(t *testing.T) {
	root := t.TempDir()
	seedWorkspace(t, root)

	mock := agent.NewMockClient("Mara rowed to the lighthouse and found the door unlocked. She went inside.")
	builder := newTestBuilder(t, root, mock)

	result, err := builder.Build(context.Background(), Params{
		SceneID:    2,
		Budget:     4000,
		Resolution: artifact.ResolutionTiny,
		Include:    IncludeAll,
		RunID:      "run-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if mock.CallCount() != 1 {
		t.Errorf("backend calls = %d, want 1 (prior scene summary only)", mock.CallCount())
	}

	var packet domain.ContextPacket
	if err := json.Unmarshal(result.Packet, &packet); err != nil {
		t.Fatal(err)
	}

	if packet.SceneID != 2 {
		t.Errorf("scene_id = %d", packet.SceneID)
	}
	if packet.Build.BudgetTokens != 4000 {
		t.Errorf("budget = %d", packet.Build.BudgetTokens)
	}

	// Ring A carries the style profile merge.
	if !containsString(packet.RingA.GlobalConstraints, "MUST NOT: gratuitous gore") {
		t.Errorf("constraints = %v", packet.RingA.GlobalConstraints)
	}
	if !containsString(packet.RingA.Tone, "clinical") {
		t.Errorf("tone = %v", packet.RingA.Tone)
	}

	// Ring B resolves cast with the chapter state override and filters locks.
	if len(packet.RingB.Cast) != 1 || packet.RingB.Cast[0].CurrentState != "exhausted" {
		t.Errorf("cast = %+v", packet.RingB.Cast)
	}
	if len(packet.RingB.ContinuityLocks) != 1 || packet.RingB.ContinuityLocks[0].ID != "l1" {
		t.Errorf("locks = %+v", packet.RingB.ContinuityLocks)
	}

	// Ring C: summary text verbatim, filtered facts and glossary.
	if packet.RingC.PriorSceneSummary != "Mara rowed to the lighthouse and found the door unlocked. She went inside." {
		t.Errorf("summary = %q", packet.RingC.PriorSceneSummary)
	}
	if len(packet.RingC.RelevantFacts) != 1 {
		t.Errorf("facts = %v", packet.RingC.RelevantFacts)
	}
	if len(packet.RingC.Glossary) != 1 || packet.RingC.Glossary[0].Term != "foghorn" {
		t.Errorf("glossary = %v", packet.RingC.Glossary)
	}

	// Every file read shows up in sources, required inputs first.
	if len(packet.Build.Sources) != 11 {
		t.Errorf("sources = %d: %+v", len(packet.Build.Sources), packet.Build.Sources)
	}
	if packet.Build.Sources[0].ArtifactID != "artifacts/inputs/story_spec.json" {
		t.Errorf("first source = %+v", packet.Build.Sources[0])
	}
	if packet.Build.Sources[1].ArtifactID != "artifacts/scenes/scene_002.plan.json" {
		t.Errorf("second source = %+v", packet.Build.Sources[1])
	}

	// Meta records a hash per input read.
	for _, key := range []string{
		"story_spec", "scene_plan", "scene_beats", "plot_intent", "style_profile",
		"continuity_locks", "continuity_facts", "world", "characters",
		"character_state", "prior_scene",
	} {
		if result.Meta.InputHashes[key] == "" {
			t.Errorf("missing input hash for %s", key)
		}
	}

	if !artifact.Exists(artifact.NewLayout(root).SceneContext(2)) {
		t.Error("packet not persisted")
	}
	if !artifact.Exists(artifact.NewLayout(root).SceneContextMeta(2)) {
		t.Error("meta not persisted")
	}
}

func TestBuildSkipsWhenPacketExists(t *testing.T) {
	root := t.TempDir()
	seedWorkspace(t, root)

	mock := agent.NewMockClient("summary one", "summary two")
	builder := newTestBuilder(t, root, mock)
	params := Params{SceneID: 2, Budget: 4000, Resolution: artifact.ResolutionTiny, Include: IncludeAll}

	if _, err := builder.Build(context.Background(), params); err != nil {
		t.Fatal(err)
	}
	result, err := builder.Build(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Error("second build without force should be a cache hit")
	}
	if mock.CallCount() != 1 {
		t.Errorf("cache hit must not touch the backend, calls = %d", mock.CallCount())
	}

	// Force rebuilds.
	result, err = builder.Build(context.Background(), Params{
		SceneID: 2, Budget: 4000, Resolution: artifact.ResolutionTiny, Include: IncludeAll, Force: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Error("force build should produce a result")
	}
}

func TestBuildMissingInputsNameTheStage(t *testing.T) {
	root := t.TempDir()
	mock := agent.NewMockClient()
	builder := newTestBuilder(t, root, mock)

	_, err := builder.Build(context.Background(), Params{
		SceneID: 1, Budget: 4000, Resolution: artifact.ResolutionTiny, Include: IncludeAll,
	})
	var missing *artifact.MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %v", err)
	}
	if missing.Stage != "seed apply" {
		t.Errorf("stage = %q", missing.Stage)
	}

	// With the spec in place, the next missing input is the scene plan.
	seedWorkspace(t, root)
	layout := artifact.NewLayout(root)
	os.Remove(layout.ScenePlan(2))

	_, err = builder.Build(context.Background(), Params{
		SceneID: 2, Budget: 4000, Resolution: artifact.ResolutionTiny, Include: IncludeAll,
	})
	if !errors.As(err, &missing) || missing.Stage != "plan scenes" {
		t.Errorf("expected plan scenes stage, got %v", err)
	}
}

func TestBuildIncludeAblation(t *testing.T) {
	root := t.TempDir()
	seedWorkspace(t, root)

	mock := agent.NewMockClient("prior summary")
	builder := newTestBuilder(t, root, mock)

	result, err := builder.Build(context.Background(), Params{
		SceneID: 2, Budget: 4000, Resolution: artifact.ResolutionTiny, Include: IncludeRingB,
	})
	if err != nil {
		t.Fatal(err)
	}

	var packet domain.ContextPacket
	if err := json.Unmarshal(result.Packet, &packet); err != nil {
		t.Fatal(err)
	}
	if packet.RingA.Premise != "" || len(packet.RingA.StyleRules) != 0 {
		t.Errorf("ringA not zeroed: %+v", packet.RingA)
	}
	if packet.RingC.PriorSceneSummary != "N/A" {
		t.Errorf("ringC not zeroed: %+v", packet.RingC)
	}
	if packet.RingB.SceneGoal == "" {
		t.Error("ringB should carry content")
	}
	// Provenance still records everything that was read.
	if packet.Build.Include != "ringB" {
		t.Errorf("include = %q", packet.Build.Include)
	}
}

func TestBuildSceneOneHasNoPriorSummary(t *testing.T) {
	root := t.TempDir()
	seedWorkspace(t, root)
	layout := artifact.NewLayout(root)

	// Give scene 1 its own plan and beats.
	writeArtifact(t, layout.ScenePlan(1), `{
  "scene_id": 1,
  "chapter_no": 1,
  "title": "Arrival",
  "setting": {"location_id": "jetty", "time": "dusk", "mood_tags": []},
  "cast": ["mara"],
  "goal": "Mara lands on the island.",
  "stakes": "No way back before dark.",
  "beats_ref": "artifacts/scenes/scene_001.beats.json"
}`)
	writeArtifact(t, layout.SceneBeats(1), `{
  "scene_id": 1,
  "beats": [{"type": "entry", "description": "The boat scrapes the jetty."}]
}`)

	mock := agent.NewMockClient()
	builder := newTestBuilder(t, root, mock)

	result, err := builder.Build(context.Background(), Params{
		SceneID: 1, Budget: 4000, Resolution: artifact.ResolutionTiny, Include: IncludeAll,
	})
	if err != nil {
		t.Fatal(err)
	}
	if mock.CallCount() != 0 {
		t.Errorf("scene 1 must not call the backend, calls = %d", mock.CallCount())
	}

	var packet domain.ContextPacket
	if err := json.Unmarshal(result.Packet, &packet); err != nil {
		t.Fatal(err)
	}
	if packet.RingC.PriorSceneSummary != "N/A" {
		t.Errorf("summary = %q", packet.RingC.PriorSceneSummary)
	}
}

func TestBuildRejectsInvalidStyleProfile(t *testing.T) {
	root := t.TempDir()
	seedWorkspace(t, root)
	layout := artifact.NewLayout(root)
	writeArtifact(t, layout.SeedStyleProfile(), `{"profile_name": "missing the id"}`)

	mock := agent.NewMockClient("summary")
	builder := newTestBuilder(t, root, mock)

	_, err := builder.Build(context.Background(), Params{
		SceneID: 2, Budget: 4000, Resolution: artifact.ResolutionTiny, Include: IncludeAll,
	})
	if err == nil || !strings.Contains(err.Error(), "style profile validation failed") {
		t.Errorf("expected style profile validation error, got %v", err)
	}
}
