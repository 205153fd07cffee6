package ring

import (
	"strings"

	"github.com/vampirenirmal/storyweave/internal/domain"
)

// maxStyleRules caps Ring A style rules after a style profile merge.
// Earlier rules win; profile rules are dropped from the tail.
const maxStyleRules = 20

// ApplyStyleProfile folds an authorial style profile into Ring A. Tones
// union, scene rules and taboos become MUST / MUST NOT constraints, and
// the profile's voice directives append to the style rules up to the cap.
func ApplyStyleProfile(ringA domain.RingA, profile domain.StyleProfile) domain.RingA {
	ringA.Tone = appendUnique(ringA.Tone, profile.Tone)

	constraints := ringA.GlobalConstraints
	if profile.SceneRules != nil {
		constraints = appendUnique(constraints, prefixed("MUST: ", profile.SceneRules.MustInclude))
		constraints = appendUnique(constraints, prefixed("MUST NOT: ", profile.SceneRules.MustNot))
	}
	if profile.HorrorEngine != nil {
		constraints = appendUnique(constraints, prefixed("MUST NOT: ", profile.HorrorEngine.Taboos))
	}
	ringA.GlobalConstraints = constraints

	rules := appendUnique(ringA.StyleRules, profileRules(profile))
	if len(rules) > maxStyleRules {
		rules = rules[:maxStyleRules]
	}
	ringA.StyleRules = rules
	return ringA
}

func profileRules(profile domain.StyleProfile) []string {
	var rules []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			rules = append(rules, label+v)
		}
	}

	add("Intent: ", profile.Intent)

	if profile.Syntax != nil {
		add("Sentence rhythm: ", profile.Syntax.SentenceRhythm)
		add("Paragraphing: ", profile.Syntax.Paragraphing)
	}

	if profile.Sensory != nil {
		if len(profile.Sensory.PriorityOrder) > 0 {
			rules = append(rules, "Sensory priority: "+strings.Join(profile.Sensory.PriorityOrder, " > "))
		}
		if len(profile.Sensory.Motifs) > 0 {
			rules = append(rules, "Motifs: "+strings.Join(profile.Sensory.Motifs, ", "))
		}
	}

	if profile.Dialogue != nil {
		add("Dialogue subtext: ", profile.Dialogue.SubtextRule)
		add("Dialogue style: ", profile.Dialogue.Style)
	}

	if profile.Diction != nil {
		add("Diction register: ", profile.Diction.Register)
		add("Diction note: ", profile.Diction.Note)
	}

	if len(profile.OutputControls) > 0 {
		var parts []string
		for _, key := range []string{"metaphor_density", "exposition_throttle", "violence", "gore"} {
			if value := strings.TrimSpace(profile.OutputControls[key]); value != "" {
				parts = append(parts, key+"="+value)
			}
		}
		if len(parts) > 0 {
			rules = append(rules, "Output controls: "+strings.Join(parts, ", "))
		}
	}

	if profile.HorrorEngine != nil {
		rules = append(rules, prefixed("Horror principle: ", capList(profile.HorrorEngine.Principles, 5))...)
	}

	if profile.CharacterVoice != nil {
		rules = append(rules, prefixed("Voice habit: ", capList(profile.CharacterVoice.Habits, 5))...)
		rules = append(rules, prefixed("Unreliability: ", capList(profile.CharacterVoice.Unreliability, 5))...)
	}

	return rules
}

func prefixed(prefix string, items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		out = append(out, prefix+item)
	}
	return out
}

func capList(items []string, limit int) []string {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

// appendUnique appends extra onto base, skipping exact duplicates while
// preserving first-seen order.
func appendUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	result := make([]string, 0, len(base)+len(extra))
	for _, item := range append(append([]string{}, base...), extra...) {
		if seen[item] {
			continue
		}
		seen[item] = true
		result = append(result, item)
	}
	return result
}
