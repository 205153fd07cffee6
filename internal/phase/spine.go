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

type SpineResult struct {
	Spine json.RawMessage
	Meta  artifact.Meta
}

// PlanSpine generates the act/chapter/scene skeleton from the resolved
// inputs. Returns nil without touching the backend when the spine
// already exists and force is off.
func PlanSpine(ctx context.Context, env Env, force bool, runID string) (*SpineResult, error) {
	spinePath := env.Layout.PlotSpine()
	if artifact.Exists(spinePath) && !force {
		env.logger().Info("plot spine exists, skipping", "path", spinePath)
		return nil, nil
	}

	specText, err := os.ReadFile(env.Layout.InputsSpec())
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "story spec", Path: env.Layout.InputsSpec(), Stage: "seed apply"}
	}
	if err != nil {
		return nil, err
	}

	intentText, haveIntent, err := artifact.ReadOptional(env.Layout.InputsPlotIntent())
	if err != nil {
		return nil, err
	}

	spine, err := env.Protocol.Generate(ctx, generate.Request{
		Stage:       "plan spine",
		Kind:        schema.PlotSpine,
		System:      "You are a careful story planner.",
		User:        spinePrompt(specText, intentText),
		Temperature: 0.4,
		MaxTokens:   1500,
	})
	if err != nil {
		return nil, err
	}

	if err := artifact.WriteJSON(spinePath, spine); err != nil {
		return nil, err
	}

	inputHashes := map[string]string{"story_spec": artifact.HashBytes(specText)}
	if haveIntent {
		inputHashes["plot_intent"] = artifact.HashBytes(intentText)
	}
	meta := artifact.Meta{
		CreatedAt:   artifact.Timestamp(time.Now()),
		Model:       env.Client.Model(),
		Backend:     env.Client.Backend(),
		InputHash:   artifact.HashBytes(specText),
		InputHashes: inputHashes,
		RunID:       runID,
	}
	if err := artifact.WriteJSON(env.Layout.PlotSpineMeta(), meta); err != nil {
		return nil, err
	}

	return &SpineResult{Spine: spine, Meta: meta}, nil
}

func spinePrompt(specText, intentText []byte) string {
	instruction := "Generate a plot spine JSON object that matches the schema below. " +
		"Return JSON only, no extra text, no markdown fences. Keep " +
		"acts/chapters/scenes counts reasonable for the target_length. " +
		"Scenes must be sequential integers starting at 1 across the whole " +
		"story, and scenes arrays must contain integers only.\n\n" +
		"Schema: {acts: [{act_no, summary, chapters: [{chapter_no, goal, " +
		"turning_points, scenes, end_hook?}]}]}\n\n" +
		"Story spec JSON:\n" + string(specText)

	if intentText != nil {
		instruction += "\n\nPlot intent JSON:\n" + string(intentText) +
			"\n\nRespect plot_constraints.must_include and plot_constraints.must_not, " +
			"use act_shape beats as guiding checkpoints for chapter distribution, " +
			"and preserve plot_intent.core_arc."
	}
	return instruction
}

// SceneChapters maps the spine's scene ids to their chapters: which
// scenes belong to each chapter, and the reverse lookup.
func SceneChapters(spine domain.PlotSpine) (map[int][]int, map[int]int) {
	byChapter := map[int][]int{}
	toChapter := map[int]int{}
	for _, act := range spine.Acts {
		for _, chapter := range act.Chapters {
			if chapter.ChapterNo < 1 {
				continue
			}
			if _, ok := byChapter[chapter.ChapterNo]; !ok {
				byChapter[chapter.ChapterNo] = []int{}
			}
			for _, sceneID := range chapter.Scenes {
				byChapter[chapter.ChapterNo] = append(byChapter[chapter.ChapterNo], sceneID)
				toChapter[sceneID] = chapter.ChapterNo
			}
		}
	}
	return byChapter, toChapter
}
