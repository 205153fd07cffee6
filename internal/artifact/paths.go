// Package artifact owns the on-disk workspace: path conventions, canonical
// JSON persistence, content hashing, and resolution-tier selection.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves every artifact path beneath one workspace root. Scene
// numbered artifacts use a zero-padded 3-digit id; every stage that reads
// or writes them goes through these constructors.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return Layout{Root: abs}
}

// EnsureDirs creates the workspace skeleton. A regular file squatting on a
// directory path is an error rather than something to silently replace.
func (l Layout) EnsureDirs() error {
	for _, rel := range []string{
		"seeds",
		"artifacts",
		"artifacts/defaults",
		"artifacts/inputs",
		"out",
	} {
		path := filepath.Join(l.Root, rel)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return fmt.Errorf("expected directory at %s, found a file", path)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func (l Layout) join(parts ...string) string {
	return filepath.Join(append([]string{l.Root}, parts...)...)
}

func (l Layout) DefaultsSpec() string       { return l.join("artifacts", "defaults", "story_spec.json") }
func (l Layout) DefaultsPlotIntent() string { return l.join("artifacts", "defaults", "plot_intent.json") }
func (l Layout) Registry() string           { return l.join("artifacts", "registry.json") }

func (l Layout) SeedOverride() string     { return l.join("seeds", "story_overrides.json") }
func (l Layout) SeedPlotOverride() string { return l.join("seeds", "plot_overrides.json") }
func (l Layout) SeedStyleProfile() string { return l.join("seeds", "style_profile.json") }
func (l Layout) SeedStyleProfileExample() string {
	return l.join("seeds", "style_profile.example.json")
}

func (l Layout) InputsSpec() string       { return l.join("artifacts", "inputs", "story_spec.json") }
func (l Layout) InputsPlotIntent() string { return l.join("artifacts", "inputs", "plot_intent.json") }
func (l Layout) InputsManifest() string   { return l.join("artifacts", "inputs", "manifest.json") }
func (l Layout) SeedReport() string       { return l.join("out", "seed_report.json") }

func (l Layout) PlotSpine() string     { return l.join("artifacts", "plot", "spine.json") }
func (l Layout) PlotSpineMeta() string { return l.join("artifacts", "plot", "spine.meta.json") }

func (l Layout) ScenesIndex() string { return l.join("artifacts", "scenes", "scenes.json") }
func (l Layout) ScenesMeta() string  { return l.join("artifacts", "scenes", "scenes.meta.json") }

func (l Layout) ScenePlan(sceneID int) string {
	return l.join("artifacts", "scenes", sceneFile(sceneID, "plan.json"))
}

func (l Layout) SceneBeats(sceneID int) string {
	return l.join("artifacts", "scenes", sceneFile(sceneID, "beats.json"))
}

func (l Layout) SceneBeatsMeta(sceneID int) string {
	return l.join("artifacts", "scenes", sceneFile(sceneID, "beats.meta.json"))
}

func (l Layout) SceneContext(sceneID int) string {
	return l.join("artifacts", "context", sceneFile(sceneID, "context.json"))
}

func (l Layout) SceneContextMeta(sceneID int) string {
	return l.join("artifacts", "context", sceneFile(sceneID, "context.meta.json"))
}

func (l Layout) WorldDir() string      { return l.join("artifacts", "world") }
func (l Layout) CharactersDir() string { return l.join("artifacts", "characters") }

func (l Layout) CharacterState(chapterNo int) string {
	return l.join("artifacts", "characters", "state", fmt.Sprintf("ch%02d.json", chapterNo))
}

func (l Layout) ContinuityLocks() string { return l.join("artifacts", "continuity", "locks.json") }
func (l Layout) ContinuityFacts() string { return l.join("artifacts", "continuity", "facts.json") }

func (l Layout) SceneDraft(sceneID int) string {
	return l.join("out", "scenes", sceneFile(sceneID, "draft.md"))
}

func (l Layout) SceneFinal(sceneID int) string {
	return l.join("out", "scenes", sceneFile(sceneID, "final.md"))
}

func (l Layout) SceneDraftMeta(sceneID int) string {
	return l.join("out", "scenes", sceneFile(sceneID, "draft.meta.json"))
}

func (l Layout) SceneProse(sceneID int, kind string) string {
	return l.join("out", "scenes", sceneFile(sceneID, kind+".md"))
}

func (l Layout) ContinuityReport(sceneID int) string {
	return l.join("out", "scenes", sceneFile(sceneID, "continuity_report.json"))
}

func (l Layout) ScenePatch(sceneID int) string {
	return l.join("out", "scenes", sceneFile(sceneID, "patch.json"))
}

func (l Layout) ContinuityMeta(sceneID int) string {
	return l.join("out", "scenes", sceneFile(sceneID, "continuity.meta.json"))
}

func sceneFile(sceneID int, suffix string) string {
	return fmt.Sprintf("scene_%03d.%s", sceneID, suffix)
}

// PlanRef and BeatsRef are the canonical workspace-relative artifact ids
// that generated index/plan content must carry, always slash-separated.

func PlanRef(sceneID int) string {
	return fmt.Sprintf("artifacts/scenes/scene_%03d.plan.json", sceneID)
}

func BeatsRef(sceneID int) string {
	return fmt.Sprintf("artifacts/scenes/scene_%03d.beats.json", sceneID)
}
