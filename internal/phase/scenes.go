package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

type ScenesResult struct {
	Index domain.ScenesIndex
	Plans []json.RawMessage
	Meta  artifact.Meta
}

// scenesPayload is the combined response shape: the index plus one plan
// per scene, generated together so they cannot drift apart.
type scenesPayload struct {
	Index json.RawMessage   `json:"index"`
	Plans []json.RawMessage `json:"plans"`
}

const scenesFormat = `{"index": <scenes-index>, "plans": [<scene-plan>, ...]}`

// PlanScenes expands the spine into the scenes index and per-scene
// plans. chapter limits generation to one chapter's scenes; 0 means the
// whole story. Referential integrity between index, plans, and the
// spine is enforced before anything is written.
func PlanScenes(ctx context.Context, env Env, chapter int, force bool, runID string) (*ScenesResult, error) {
	indexPath := env.Layout.ScenesIndex()
	if chapter == 0 && artifact.Exists(indexPath) && !force {
		env.logger().Info("scenes index exists, skipping", "path", indexPath)
		return nil, nil
	}

	specText, err := os.ReadFile(env.Layout.InputsSpec())
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "story spec", Path: env.Layout.InputsSpec(), Stage: "seed apply"}
	}
	if err != nil {
		return nil, err
	}

	spineText, err := os.ReadFile(env.Layout.PlotSpine())
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "plot spine", Path: env.Layout.PlotSpine(), Stage: "plan spine"}
	}
	if err != nil {
		return nil, err
	}

	var spine domain.PlotSpine
	if err := json.Unmarshal(spineText, &spine); err != nil {
		return nil, fmt.Errorf("parsing plot spine: %w", err)
	}
	byChapter, toChapter := SceneChapters(spine)

	var target []int
	if chapter > 0 {
		ids, ok := byChapter[chapter]
		if !ok {
			return nil, fmt.Errorf("chapter %d not found in spine", chapter)
		}
		target = ids
		if artifact.Exists(indexPath) && !force && plansExist(env.Layout, target) {
			env.logger().Info("chapter plans exist, skipping", "chapter", chapter)
			return nil, nil
		}
	} else {
		for _, ids := range byChapter {
			target = append(target, ids...)
		}
		sort.Ints(target)
	}

	payload, err := env.Protocol.Generate(ctx, generate.Request{
		Stage:       "plan scenes",
		Format:      scenesFormat,
		System:      "You are a careful story planner.",
		User:        scenesPrompt(specText, spineText, chapter),
		Temperature: 0.4,
		MaxTokens:   2000,
		Check: func(raw json.RawMessage) []string {
			return checkScenes(env, raw, toChapter, target)
		},
	})
	if err != nil {
		return nil, err
	}

	var parsed scenesPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("parsing scenes payload: %w", err)
	}

	if err := artifact.WriteJSON(indexPath, parsed.Index); err != nil {
		return nil, err
	}
	for _, planRaw := range parsed.Plans {
		var plan domain.ScenePlan
		if err := json.Unmarshal(planRaw, &plan); err != nil {
			return nil, fmt.Errorf("parsing scene plan: %w", err)
		}
		if err := artifact.WriteJSON(env.Layout.ScenePlan(plan.SceneID), planRaw); err != nil {
			return nil, err
		}
	}

	meta := artifact.Meta{
		CreatedAt: artifact.Timestamp(time.Now()),
		Model:     env.Client.Model(),
		Backend:   env.Client.Backend(),
		InputHashes: map[string]string{
			"story_spec": artifact.HashBytes(specText),
			"spine":      artifact.HashBytes(spineText),
		},
		RunID:   runID,
		Chapter: chapter,
	}
	if err := artifact.WriteJSON(env.Layout.ScenesMeta(), meta); err != nil {
		return nil, err
	}

	var index domain.ScenesIndex
	if err := json.Unmarshal(parsed.Index, &index); err != nil {
		return nil, fmt.Errorf("parsing scenes index: %w", err)
	}

	env.logger().Info("scenes planned",
		"chapter", chapter,
		"scene_count", len(parsed.Plans))

	return &ScenesResult{Index: index, Plans: parsed.Plans, Meta: meta}, nil
}

func plansExist(layout artifact.Layout, sceneIDs []int) bool {
	for _, id := range sceneIDs {
		if !artifact.Exists(layout.ScenePlan(id)) {
			return false
		}
	}
	return true
}

// checkScenes validates the combined payload: index and plans against
// their schemas, plus every cross-reference the schemas cannot express.
func checkScenes(env Env, raw json.RawMessage, toChapter map[int]int, target []int) []string {
	var payload scenesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return []string{"Response must be a JSON object with index and plans"}
	}

	var violations []string

	if payload.Index == nil {
		violations = append(violations, "Missing index in response")
	} else {
		violations = append(violations, schemaViolations(env, schema.ScenesIndex, payload.Index, "index: ")...)
		violations = append(violations, checkIndexEntries(payload.Index, toChapter)...)
	}

	if payload.Plans == nil {
		violations = append(violations, "Missing plans in response")
	} else {
		violations = append(violations, checkPlans(env, payload.Plans, toChapter, target)...)
	}

	return violations
}

func checkIndexEntries(indexRaw json.RawMessage, toChapter map[int]int) []string {
	var index domain.ScenesIndex
	if err := json.Unmarshal(indexRaw, &index); err != nil {
		return nil
	}

	var violations []string
	seen := map[int]bool{}
	for _, entry := range index.Scenes {
		seen[entry.SceneID] = true
		expectedChapter, known := toChapter[entry.SceneID]
		if !known {
			violations = append(violations, fmt.Sprintf("index includes unknown scene_id %d", entry.SceneID))
			continue
		}
		if entry.ChapterNo != expectedChapter {
			violations = append(violations, fmt.Sprintf("scene_id %d has wrong chapter_no", entry.SceneID))
		}
		if entry.PlanPath != artifact.PlanRef(entry.SceneID) {
			violations = append(violations, fmt.Sprintf("scene_id %d has invalid plan_path", entry.SceneID))
		}
		if entry.BeatsPath != artifact.BeatsRef(entry.SceneID) {
			violations = append(violations, fmt.Sprintf("scene_id %d has invalid beats_path", entry.SceneID))
		}
	}

	var missing []int
	for sceneID := range toChapter {
		if !seen[sceneID] {
			missing = append(missing, sceneID)
		}
	}
	if len(missing) > 0 {
		violations = append(violations, "index missing scenes: "+joinSceneIDs(missing))
	}
	return violations
}

// schemaViolations runs one schema check and reports every problem as a
// prefixed violation. An adapter failure surfaces as a violation too, so
// a broken check can never silently pass the payload.
func schemaViolations(env Env, kind schema.Kind, payload json.RawMessage, prefix string) []string {
	found, err := env.Schemas.Validate(kind, payload)
	if err != nil {
		return []string{prefix + "schema check failed: " + err.Error()}
	}
	violations := make([]string, 0, len(found))
	for _, v := range found {
		violations = append(violations, prefix+v)
	}
	return violations
}

func joinSceneIDs(ids []int) string {
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func checkPlans(env Env, plans []json.RawMessage, toChapter map[int]int, target []int) []string {
	var violations []string
	planIDs := map[int]bool{}

	for _, planRaw := range plans {
		var plan domain.ScenePlan
		if err := json.Unmarshal(planRaw, &plan); err != nil {
			violations = append(violations, "plan entries must be objects")
			continue
		}
		violations = append(violations, schemaViolations(env, schema.ScenePlan, planRaw, fmt.Sprintf("plan %d: ", plan.SceneID))...)
		expectedChapter, known := toChapter[plan.SceneID]
		if !known {
			violations = append(violations, fmt.Sprintf("plan has unknown scene_id %d", plan.SceneID))
			continue
		}
		if plan.ChapterNo != expectedChapter {
			violations = append(violations, fmt.Sprintf("plan scene_id %d has wrong chapter_no", plan.SceneID))
		}
		if plan.BeatsRef != artifact.BeatsRef(plan.SceneID) {
			violations = append(violations, fmt.Sprintf("plan scene_id %d has invalid beats_ref", plan.SceneID))
		}
		planIDs[plan.SceneID] = true
	}

	var missing, extra []int
	targetSet := map[int]bool{}
	for _, id := range target {
		targetSet[id] = true
		if !planIDs[id] {
			missing = append(missing, id)
		}
	}
	for id := range planIDs {
		if !targetSet[id] {
			extra = append(extra, id)
		}
	}
	if len(missing) > 0 {
		violations = append(violations, "missing plans for scenes: "+joinSceneIDs(missing))
	}
	if len(extra) > 0 {
		violations = append(violations, "plans provided for unexpected scenes: "+joinSceneIDs(extra))
	}
	return violations
}

func scenesPrompt(specText, spineText []byte, chapter int) string {
	chapterLine := "Include plans for all chapters."
	if chapter > 0 {
		chapterLine = fmt.Sprintf("Only include plans for chapter %d.", chapter)
	}
	return "Generate a JSON object with two keys: index and plans. BOTH keys are required. " +
		"Return JSON only, no extra text, no markdown fences. " +
		"Do NOT wrap the JSON in {role, content}. " +
		"Use the spine scene IDs exactly; scenes are global sequential integers. " +
		"index must be an object: {version: 1, scenes: [ ... ]}. " +
		"Each index.scenes item must be: " +
		"{scene_id, chapter_no, title, plan_path, beats_path}. " +
		"plan_path must be artifacts/scenes/scene_###.plan.json and " +
		"beats_path must be artifacts/scenes/scene_###.beats.json (zero-padded to 3 digits). " +
		"plans must be a list of scene-plan objects with required fields, and there must be one plan per scene_id. " +
		"Do not omit the plans list: it is required even if brief. " +
		"{scene_id, chapter_no, title, setting, cast, goal, stakes, beats_ref}. " +
		"setting must be an object: {location_id, time, mood_tags} and " +
		"location_id must be a short slug (e.g. argonaut_station_corridor). " +
		"beats_ref must equal the matching beats_path. " +
		"Keep cast to 0-4 entries. Keep content concise. " +
		chapterLine + "\n\n" +
		"Output format:\n" + scenesFormat + "\n\n" +
		"Story spec JSON:\n" + string(specText) + "\n\n" +
		"Spine JSON:\n" + string(spineText)
}
