package phase

import (
	"fmt"

	"github.com/vampirenirmal/storyweave/internal/artifact"
)

// DefaultStorySpec is the base spec written by init and merged under
// seed overrides. Maps rather than typed structs: the merge operates on
// generic JSON trees, and overrides may carry keys the types don't know.
func DefaultStorySpec() map[string]any {
	return map[string]any{
		"title":         "Untitled Story",
		"logline":       "A short logline.",
		"genre":         []any{"fiction"},
		"tone":          []any{"neutral"},
		"target_length": map[string]any{"unit": "words", "value": 1000},
		"pov":           "first",
		"tense":         "past",
		"constraints":   map[string]any{"must": []any{}, "must_not": []any{}},
	}
}

// DefaultPlotIntent is the fallback when no plot intent default exists
// on disk. All fields empty: no intent means no extra constraints.
func DefaultPlotIntent() map[string]any {
	return map[string]any{
		"plot_intent": map[string]any{
			"core_arc":         "",
			"themes":           []any{},
			"central_question": "",
		},
		"protagonist_arc": map[string]any{
			"starting_state": "",
			"midpoint_state": "",
			"end_state":      "",
		},
		"plot_constraints": map[string]any{
			"must_include": []any{},
			"must_not":     []any{},
		},
		"act_shape": map[string]any{
			"act_1": map[string]any{"purpose": "", "beats": []any{}},
			"act_2": map[string]any{"purpose": "", "beats": []any{}},
			"act_3": map[string]any{"purpose": "", "beats": []any{}},
		},
		"ending_constraints": map[string]any{
			"resolution_style":     "",
			"final_image":          "",
			"emotional_aftertaste": "",
		},
	}
}

// DefaultStyleProfileExample is written as seeds/style_profile.example.json
// so authors have a complete profile to copy from.
func DefaultStyleProfileExample() map[string]any {
	return map[string]any{
		"profile_id":   "example",
		"profile_name": "Crisp Noir",
		"intent":       "Lean, tense noir with sharp sensory cuts.",
		"tone":         []any{"noir", "taut"},
		"syntax": map[string]any{
			"sentence_rhythm":    "Mix short punches with one longer line per beat.",
			"paragraphing":       "One paragraph per beat, no long blocks.",
			"rhetorical_devices": []any{"anaphora"},
		},
		"diction": map[string]any{
			"register": "plain",
			"allowed":  []any{"concrete verbs", "sensory nouns"},
			"avoid":    []any{"purple prose"},
			"note":     "Favor clarity over flourish.",
		},
		"dialogue": map[string]any{
			"style":        "Clipped, subtext-heavy.",
			"subtext_rule": "Say less than you mean.",
			"common_moves": []any{"deflection", "half-truth"},
		},
		"scene_rules": map[string]any{
			"must_include": []any{"shadow detail"},
			"must_not":     []any{"montage"},
		},
		"output_controls": map[string]any{
			"metaphor_density":    "low",
			"exposition_throttle": "tight",
			"violence":            "medium",
			"gore":                "low",
		},
	}
}

// InitWorkspace creates the directory skeleton and writes the default
// artifacts a fresh workspace needs. Existing files are left alone so
// init stays safe to re-run.
func InitWorkspace(layout artifact.Layout) error {
	if err := layout.EnsureDirs(); err != nil {
		return err
	}
	defaults := []struct {
		path  string
		value any
	}{
		{layout.DefaultsSpec(), DefaultStorySpec()},
		{layout.DefaultsPlotIntent(), DefaultPlotIntent()},
		{layout.SeedStyleProfileExample(), DefaultStyleProfileExample()},
		{layout.Registry(), map[string]any{"version": 1, "artifacts": []any{}}},
	}
	for _, d := range defaults {
		if artifact.Exists(d.path) {
			continue
		}
		if err := artifact.WriteJSON(d.path, d.value); err != nil {
			return fmt.Errorf("writing default %s: %w", d.path, err)
		}
	}
	return nil
}
