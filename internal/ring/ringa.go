// Package ring assembles the scene context packet: three concentric
// layers of story context (global, scene-local, cross-scene memory)
// built deterministically from on-disk artifacts.
package ring

import (
	"fmt"
	"strings"

	"github.com/vampirenirmal/storyweave/internal/domain"
)

// BuildRingA derives the global layer from the resolved story spec and
// the optional plot intent. The premise prefers the logline and falls
// back to the title.
func BuildRingA(spec domain.StorySpec, intent *domain.PlotIntent) domain.RingA {
	premise := spec.Logline
	if premise == "" {
		premise = spec.Title
	}

	constraints := make([]string, 0, len(spec.Constraints.Must)+len(spec.Constraints.MustNot))
	for _, item := range spec.Constraints.Must {
		constraints = append(constraints, "MUST "+item)
	}
	for _, item := range spec.Constraints.MustNot {
		constraints = append(constraints, "MUST NOT "+item)
	}

	if intent != nil {
		if arc := strings.TrimSpace(intent.Intent.CoreArc); arc != "" {
			constraints = append(constraints, "Core arc: "+arc)
		}
		if q := strings.TrimSpace(intent.Intent.CentralQuestion); q != "" {
			constraints = append(constraints, "Central question: "+q)
		}
	}

	pov := spec.POV
	if pov == "" {
		pov = "first"
	}
	tense := spec.Tense
	if tense == "" {
		tense = "past"
	}

	rules := []string{
		fmt.Sprintf("Write in %s tense.", tense),
		fmt.Sprintf("Use %s POV.", pov),
		"Keep paragraphs concise.",
		"Favor concrete sensory details.",
		"Maintain tonal consistency.",
	}
	if len(spec.Tone) > 0 {
		rules = append(rules, "Tone: "+strings.Join(spec.Tone, ", "))
	}
	if intent != nil {
		for _, theme := range intent.Intent.Themes {
			if t := strings.TrimSpace(theme); t != "" {
				rules = append(rules, "Theme: "+t)
			}
		}
	}

	tone := spec.Tone
	if tone == nil {
		tone = []string{}
	}

	return domain.RingA{
		Premise:           premise,
		Tone:              tone,
		POV:               pov,
		Tense:             tense,
		GlobalConstraints: constraints,
		StyleRules:        rules,
	}
}
