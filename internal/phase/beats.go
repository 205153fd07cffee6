package phase

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

type BeatsResult struct {
	Beats json.RawMessage
	Meta  artifact.Meta
}

// PlanBeats generates the beat list for one scene from its plan, with
// the spine, index, and plot intent as optional grounding context.
func PlanBeats(ctx context.Context, env Env, sceneID int, force bool, runID string) (*BeatsResult, error) {
	beatsPath := env.Layout.SceneBeats(sceneID)
	if artifact.Exists(beatsPath) && !force {
		env.logger().Info("scene beats exist, skipping", "scene_id", sceneID)
		return nil, nil
	}

	specText, err := os.ReadFile(env.Layout.InputsSpec())
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "story spec", Path: env.Layout.InputsSpec(), Stage: "seed apply"}
	}
	if err != nil {
		return nil, err
	}

	planText, err := os.ReadFile(env.Layout.ScenePlan(sceneID))
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "scene plan", Path: env.Layout.ScenePlan(sceneID), Stage: "plan scenes"}
	}
	if err != nil {
		return nil, err
	}

	intentText, haveIntent, err := artifact.ReadOptional(env.Layout.InputsPlotIntent())
	if err != nil {
		return nil, err
	}
	spineText, _, err := artifact.ReadOptional(env.Layout.PlotSpine())
	if err != nil {
		return nil, err
	}
	indexText, _, err := artifact.ReadOptional(env.Layout.ScenesIndex())
	if err != nil {
		return nil, err
	}

	var spec domain.StorySpec
	if err := json.Unmarshal(specText, &spec); err != nil {
		return nil, err
	}

	beats, err := env.Protocol.Generate(ctx, generate.Request{
		Stage:       "plan beats",
		Kind:        schema.SceneBeats,
		System:      "You are a careful story planner.",
		User:        beatsPrompt(spec, planText, spineText, indexText, intentText),
		Temperature: 0.4,
		MaxTokens:   1200,
	})
	if err != nil {
		return nil, err
	}

	if err := artifact.WriteJSON(beatsPath, beats); err != nil {
		return nil, err
	}

	inputHashes := map[string]string{
		"story_spec": artifact.HashBytes(specText),
		"scene_plan": artifact.HashBytes(planText),
	}
	if haveIntent {
		inputHashes["plot_intent"] = artifact.HashBytes(intentText)
	}
	meta := artifact.Meta{
		CreatedAt:   artifact.Timestamp(time.Now()),
		Model:       env.Client.Model(),
		Backend:     env.Client.Backend(),
		InputHashes: inputHashes,
		RunID:       runID,
	}
	if err := artifact.WriteJSON(env.Layout.SceneBeatsMeta(sceneID), meta); err != nil {
		return nil, err
	}

	return &BeatsResult{Beats: beats, Meta: meta}, nil
}

func beatsPrompt(spec domain.StorySpec, planText, spineText, indexText, intentText []byte) string {
	// Only the voice-relevant slice of the spec goes into the prompt.
	specSummary := map[string]any{
		"pov":           spec.POV,
		"tense":         spec.Tense,
		"tone":          spec.Tone,
		"constraints":   spec.Constraints,
		"serialization": spec.Serialization,
	}

	hookRule := "If story_spec.serialization.enabled is true OR the scene has high stakes, " +
		"include a final hook beat to tee up the next scene."

	instruction := "Generate scene beats JSON that matches the schema. Return JSON only, no extra text, no markdown fences. " +
		"Beats should form a coherent mini-arc: entry -> orientation -> pressure -> interaction -> turn -> exit. " +
		"Always include at least one turn beat. " +
		hookRule + " " +
		"Keep descriptions concrete with visible actions, dialogue intent, or reveals. " +
		"must_include and must_avoid should be short bullet-like strings and ONLY appear inside beat objects (not at the root). " +
		"Align beats with any relevant plot constraints or act-shape purpose for this scene.\n\n" +
		"Output shape example (structure only):\n" +
		"{\n" +
		"  \"scene_id\": 1,\n" +
		"  \"beats\": [\n" +
		"    {\"type\": \"entry\", \"description\": \"...\"},\n" +
		"    {\"type\": \"orientation\", \"description\": \"...\"},\n" +
		"    {\"type\": \"pressure\", \"description\": \"...\"},\n" +
		"    {\"type\": \"interaction\", \"description\": \"...\"},\n" +
		"    {\"type\": \"turn\", \"description\": \"...\"},\n" +
		"    {\"type\": \"exit\", \"description\": \"...\"},\n" +
		"    {\"type\": \"hook\", \"description\": \"...\", \"must_include\": [\"...\"], \"must_avoid\": [\"...\"]}\n" +
		"  ]\n" +
		"}\n\n" +
		"Story spec summary:\n" + canonicalText(specSummary) + "\n\n" +
		"Scene plan JSON:\n" + string(planText)

	var contextParts []string
	if spineText != nil {
		contextParts = append(contextParts, "Spine JSON:\n"+string(spineText))
	}
	if indexText != nil {
		contextParts = append(contextParts, "Scenes index JSON:\n"+string(indexText))
	}
	if intentText != nil {
		contextParts = append(contextParts, "Plot intent JSON:\n"+string(intentText))
	}
	for _, part := range contextParts {
		instruction += "\n\n" + part
	}
	return instruction
}
