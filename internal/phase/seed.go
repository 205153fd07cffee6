package phase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/merge"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

// SeedRef records one seed file that contributed to the merge.
type SeedRef struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

type SeedResult struct {
	MergedSpec       any
	MergedPlotIntent any
	SeedsUsed        []SeedRef
	ChangedKeys      []string
	PlotChangedKeys  []string
}

// SeedManifest records which seeds produced the resolved inputs.
type SeedManifest struct {
	Version        int               `json:"version"`
	CreatedAt      string            `json:"created_at"`
	SeedsUsed      []SeedRef         `json:"seeds_used"`
	ResolvedInputs map[string]string `json:"resolved_inputs"`
}

// SeedReport summarizes what the overrides changed, in dotted key paths.
type SeedReport struct {
	Version       int           `json:"version"`
	ChangedKeys   []string      `json:"changed_keys"`
	PlotOverrides PlotOverrides `json:"plot_overrides"`
}

type PlotOverrides struct {
	ChangedKeys []string `json:"changed_keys"`
}

// ApplySeeds merges seed overrides over the default spec and plot
// intent, validates the intent, and writes the resolved inputs plus a
// manifest and change report. Resolved inputs are immutable: a second
// apply without force is refused.
func ApplySeeds(env Env, force bool) (*SeedResult, error) {
	specOut := env.Layout.InputsSpec()
	if artifact.Exists(specOut) && !force {
		return nil, &artifact.ConflictError{Path: specOut}
	}

	basePath := env.Layout.DefaultsSpec()
	baseSpec, err := readTree(basePath)
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "base spec", Path: basePath, Stage: "init"}
	}
	if err != nil {
		return nil, err
	}

	basePlot, err := readTree(env.Layout.DefaultsPlotIntent())
	if os.IsNotExist(err) {
		basePlot = DefaultPlotIntent()
	} else if err != nil {
		return nil, err
	}

	var seedsUsed []SeedRef
	overrides, ref, err := readSeed(env, env.Layout.SeedOverride())
	if err != nil {
		return nil, err
	}
	if ref != nil {
		seedsUsed = append(seedsUsed, *ref)
	}
	plotOverrides, ref, err := readSeed(env, env.Layout.SeedPlotOverride())
	if err != nil {
		return nil, err
	}
	if ref != nil {
		seedsUsed = append(seedsUsed, *ref)
	}

	mergedSpec := merge.Merge(baseSpec, overrides)
	mergedPlot := merge.Merge(basePlot, plotOverrides)

	violations, err := env.Schemas.Validate(schema.PlotIntent, mergedPlot)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, fmt.Errorf("plot intent validation failed: %s", strings.Join(violations, "; "))
	}

	result := &SeedResult{
		MergedSpec:       mergedSpec,
		MergedPlotIntent: mergedPlot,
		SeedsUsed:        seedsUsed,
		ChangedKeys:      changedKeys(baseSpec, mergedSpec),
		PlotChangedKeys:  changedKeys(basePlot, mergedPlot),
	}

	if err := writeSeedOutputs(env, result); err != nil {
		return nil, err
	}

	env.logger().Info("seeds applied",
		"seeds_used", len(result.SeedsUsed),
		"changed_keys", len(result.ChangedKeys),
		"plot_changed_keys", len(result.PlotChangedKeys))

	return result, nil
}

func writeSeedOutputs(env Env, result *SeedResult) error {
	if err := artifact.WriteJSON(env.Layout.InputsSpec(), result.MergedSpec); err != nil {
		return err
	}
	if err := artifact.WriteJSON(env.Layout.InputsPlotIntent(), result.MergedPlotIntent); err != nil {
		return err
	}

	seedsUsed := result.SeedsUsed
	if seedsUsed == nil {
		seedsUsed = []SeedRef{}
	}
	manifest := SeedManifest{
		Version:   1,
		CreatedAt: artifact.Timestamp(time.Now()),
		SeedsUsed: seedsUsed,
		ResolvedInputs: map[string]string{
			"story_spec":  relTo(env.Layout.Root, env.Layout.InputsSpec()),
			"plot_intent": relTo(env.Layout.Root, env.Layout.InputsPlotIntent()),
		},
	}
	if err := artifact.WriteJSON(env.Layout.InputsManifest(), manifest); err != nil {
		return err
	}

	report := SeedReport{
		Version:       1,
		ChangedKeys:   result.ChangedKeys,
		PlotOverrides: PlotOverrides{ChangedKeys: result.PlotChangedKeys},
	}
	return artifact.WriteJSON(env.Layout.SeedReport(), report)
}

func readSeed(env Env, path string) (any, *SeedRef, error) {
	raw, ok, err := artifact.ReadOptional(path)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return map[string]any{}, nil, nil
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, nil, fmt.Errorf("parsing seed %s: %w", path, err)
	}
	return tree, &SeedRef{
		Path: relTo(env.Layout.Root, path),
		Hash: artifact.HashBytes(raw),
	}, nil
}

func readTree(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return tree, nil
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// changedKeys reports dotted paths where merged differs from base,
// sorted for stable reports.
func changedKeys(base, merged any) []string {
	changes := map[string]struct{}{}
	diffKeys(base, merged, "", changes)
	keys := make([]string, 0, len(changes))
	for key := range changes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func diffKeys(base, merged any, prefix string, out map[string]struct{}) {
	if reflect.DeepEqual(base, merged) {
		return
	}
	baseMap, baseOK := base.(map[string]any)
	mergedMap, mergedOK := merged.(map[string]any)
	if baseOK && mergedOK {
		keys := map[string]struct{}{}
		for key := range baseMap {
			keys[key] = struct{}{}
		}
		for key := range mergedMap {
			keys[key] = struct{}{}
		}
		for key := range keys {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			diffKeys(baseMap[key], mergedMap[key], next, out)
		}
		return
	}
	out[prefix] = struct{}{}
}
