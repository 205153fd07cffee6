package ring

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyweave/internal/domain"
)

func baseSpec() domain.StorySpec {
	return domain.StorySpec{
		Title:   "The Hollow Light",
		Logline: "A lighthouse keeper discovers the lamp is keeping something out.",
		Tone:    []string{"dread", "quiet"},
		POV:     "third_limited",
		Tense:   "past",
		Constraints: domain.Constraints{
			Must:    []string{"keep the keeper isolated"},
			MustNot: []string{"explain the entity"},
		},
	}
}

func TestBuildRingAPremiseAndConstraints(t *testing.T) {
	intent := &domain.PlotIntent{
		Intent: domain.IntentCore{
			CoreArc:         "denial to acceptance",
			CentralQuestion: "What is the lamp for?",
			Themes:          []string{"isolation", ""},
		},
	}

	ringA := BuildRingA(baseSpec(), intent)

	if ringA.Premise != "A lighthouse keeper discovers the lamp is keeping something out." {
		t.Errorf("premise = %q", ringA.Premise)
	}
	want := []string{
		"MUST keep the keeper isolated",
		"MUST NOT explain the entity",
		"Core arc: denial to acceptance",
		"Central question: What is the lamp for?",
	}
	if !reflect.DeepEqual(ringA.GlobalConstraints, want) {
		t.Errorf("constraints = %v", ringA.GlobalConstraints)
	}

	var themes []string
	for _, rule := range ringA.StyleRules {
		if strings.HasPrefix(rule, "Theme: ") {
			themes = append(themes, rule)
		}
	}
	if !reflect.DeepEqual(themes, []string{"Theme: isolation"}) {
		t.Errorf("theme rules = %v", themes)
	}
	if ringA.StyleRules[0] != "Write in past tense." {
		t.Errorf("first rule = %q", ringA.StyleRules[0])
	}
	if ringA.StyleRules[1] != "Use third_limited POV." {
		t.Errorf("second rule = %q", ringA.StyleRules[1])
	}
}

func TestBuildRingAFallsBackToTitle(t *testing.T) {
	spec := baseSpec()
	spec.Logline = ""

	ringA := BuildRingA(spec, nil)
	if ringA.Premise != "The Hollow Light" {
		t.Errorf("premise = %q", ringA.Premise)
	}
}

func TestBuildRingADefaultsVoice(t *testing.T) {
	ringA := BuildRingA(domain.StorySpec{Title: "Untitled"}, nil)
	if ringA.POV != "first" || ringA.Tense != "past" {
		t.Errorf("pov/tense = %s/%s", ringA.POV, ringA.Tense)
	}
	if ringA.Tone == nil {
		t.Error("tone must serialize as an empty list, not null")
	}
}

func TestApplyStyleProfileMerges(t *testing.T) {
	profile := domain.StyleProfile{
		Tone:   []string{"dread", "clinical"},
		Intent: "slow-burn unease",
		SceneRules: &domain.SceneRules{
			MustInclude: []string{"one concrete sound per scene"},
			MustNot:     []string{"jump scares"},
		},
		HorrorEngine: &domain.HorrorEngine{
			Principles: []string{"the unseen is worse"},
			Taboos:     []string{"gratuitous gore"},
		},
		Sensory: &domain.StyleSensory{
			PriorityOrder: []string{"sound", "touch", "sight"},
			Motifs:        []string{"salt", "rust"},
		},
		OutputControls: map[string]string{
			"gore":     "low",
			"violence": "implied",
		},
	}

	ringA := ApplyStyleProfile(BuildRingA(baseSpec(), nil), profile)

	if !reflect.DeepEqual(ringA.Tone, []string{"dread", "quiet", "clinical"}) {
		t.Errorf("tone = %v", ringA.Tone)
	}
	mustHave := []string{
		"MUST: one concrete sound per scene",
		"MUST NOT: jump scares",
		"MUST NOT: gratuitous gore",
	}
	for _, want := range mustHave {
		if !containsString(ringA.GlobalConstraints, want) {
			t.Errorf("constraints missing %q: %v", want, ringA.GlobalConstraints)
		}
	}
	if !containsString(ringA.StyleRules, "Sensory priority: sound > touch > sight") {
		t.Errorf("style rules missing sensory priority: %v", ringA.StyleRules)
	}
	if !containsString(ringA.StyleRules, "Output controls: violence=implied, gore=low") {
		t.Errorf("style rules missing output controls: %v", ringA.StyleRules)
	}
	if !containsString(ringA.StyleRules, "Horror principle: the unseen is worse") {
		t.Errorf("style rules missing horror principle: %v", ringA.StyleRules)
	}
}

func TestApplyStyleProfileCapsRulesAtTwenty(t *testing.T) {
	habits := make([]string, 5)
	for i := range habits {
		habits[i] = fmt.Sprintf("habit %d", i)
	}
	profile := domain.StyleProfile{
		Intent: "flood the rule list",
		Syntax: &domain.StyleSyntax{
			SentenceRhythm: "short, clipped",
			Paragraphing:   "single-idea paragraphs",
		},
		Sensory: &domain.StyleSensory{
			PriorityOrder: []string{"sound"},
			Motifs:        []string{"ash"},
		},
		Dialogue: &domain.StyleDialogue{
			Style:       "terse",
			SubtextRule: "never answer directly",
		},
		Diction: &domain.StyleDiction{
			Register: "plain",
			Note:     "avoid latinate words",
		},
		HorrorEngine: &domain.HorrorEngine{
			Principles: []string{"p1", "p2", "p3", "p4", "p5"},
		},
		CharacterVoice: &domain.CharacterVoice{
			Habits:        habits,
			Unreliability: []string{"u1", "u2", "u3"},
		},
	}

	ringA := ApplyStyleProfile(BuildRingA(baseSpec(), nil), profile)
	if len(ringA.StyleRules) != maxStyleRules {
		t.Errorf("style rules = %d, want exactly %d", len(ringA.StyleRules), maxStyleRules)
	}
	// Baseline rules always survive the cap.
	if ringA.StyleRules[0] != "Write in past tense." {
		t.Errorf("baseline rule displaced: %v", ringA.StyleRules[0])
	}
}

func TestAppendUniqueKeepsOrder(t *testing.T) {
	got := appendUnique([]string{"a", "b"}, []string{"b", "c", "a", "d"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("got %v", got)
	}
}

func scenePlanFixture() domain.ScenePlan {
	return domain.ScenePlan{
		SceneID:   2,
		ChapterNo: 1,
		Title:     "Lamp Room",
		Setting: domain.PlanSetting{
			LocationID: "lamp_room",
			Time:       "night",
			MoodTags:   []string{"claustrophobic"},
		},
		Cast:     []string{"mara", "unlisted drifter"},
		Goal:     "Mara relights the lamp before moonrise.",
		Stakes:   "The dark reaches the shore.",
		BeatsRef: "artifacts/scenes/scene_002.beats.json",
	}
}

func rosterFixture() []domain.Character {
	return []domain.Character{
		{
			ID:           "mara",
			Name:         "Mara Voss",
			Role:         "keeper",
			VoiceTics:    []string{"counts under her breath"},
			CurrentState: "exhausted",
			WantsNow:     []string{"one quiet night"},
			Taboos:       []string{"never names the entity"},
		},
	}
}

func TestBuildRingBResolvesCast(t *testing.T) {
	overrides := map[string]string{"mara": "sleep-deprived and seeing things"}
	ringB := BuildRingB(scenePlanFixture(), domain.SceneBeats{SceneID: 2, Beats: []domain.Beat{
		{Type: "entry", Description: "Mara climbs the stairs."},
	}}, rosterFixture(), overrides, nil)

	if len(ringB.Cast) != 2 {
		t.Fatalf("cast = %d", len(ringB.Cast))
	}
	if ringB.Cast[0].Name != "Mara Voss" {
		t.Errorf("matched name = %q", ringB.Cast[0].Name)
	}
	if ringB.Cast[0].CurrentState != "sleep-deprived and seeing things" {
		t.Errorf("state override not applied: %q", ringB.Cast[0].CurrentState)
	}
	// Unmatched cast names become stubs, never disappear.
	stub := ringB.Cast[1]
	if stub.ID != "unlisted drifter" || stub.Name != "unlisted drifter" {
		t.Errorf("stub = %+v", stub)
	}
	if stub.VoiceTics == nil || stub.WantsNow == nil || stub.Taboos == nil {
		t.Error("stub lists must be empty, not null")
	}
	if ringB.Setting.Location.Name != "lamp_room" {
		t.Errorf("location name = %q", ringB.Setting.Location.Name)
	}
}

func TestRelevantLocksFilterByKeyword(t *testing.T) {
	locks := []domain.Lock{
		{ID: "l1", Statement: "Mara never leaves the lamp room at night", Severity: "must", Tags: []string{}},
		{ID: "l2", Statement: "The drowned village stays submerged", Severity: "should", Tags: []string{}},
	}

	got := relevantLocks(locks, []string{"mara"}, "lamp_room")
	if len(got) != 1 || got[0].ID != "l1" {
		t.Errorf("got %v", got)
	}
}

func TestRelevantLocksEmptyKeywordsKeepEverything(t *testing.T) {
	locks := []domain.Lock{
		{ID: "l1", Statement: "anything", Severity: "should", Tags: []string{}},
		{ID: "l2", Statement: "everything", Severity: "must", Tags: []string{}},
	}
	if got := relevantLocks(locks, nil, ""); len(got) != 2 {
		t.Errorf("got %d locks, want all", len(got))
	}
}

func TestRelevantFactsEmptyKeywordsKeepNothing(t *testing.T) {
	ringB := domain.EmptyRingB()
	got := relevantFacts([]string{"The sea is rising"}, ringB)
	if len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestBuildRingCFiltersFactsAndGlossary(t *testing.T) {
	ringB := BuildRingB(scenePlanFixture(), domain.SceneBeats{SceneID: 2, Beats: []domain.Beat{
		{Type: "turn", Description: "The foghorn answers itself."},
	}}, rosterFixture(), nil, nil)

	facts := []string{
		"Mara Voss buried her predecessor below the tide line",
		"The mainland ferry runs on Sundays",
	}
	glossary := []domain.GlossaryEntry{
		{Term: "foghorn", Definition: "The station's signal horn; it has never needed fuel."},
		{Term: "wrack-lane", Definition: "A path through the kelp beds"},
	}

	ringC := BuildRingC("", facts, glossary, ringB)

	if ringC.PriorSceneSummary != "N/A" {
		t.Errorf("summary = %q", ringC.PriorSceneSummary)
	}
	if len(ringC.RelevantFacts) != 1 || !strings.Contains(ringC.RelevantFacts[0], "Mara Voss") {
		t.Errorf("facts = %v", ringC.RelevantFacts)
	}
	if len(ringC.Glossary) != 1 || ringC.Glossary[0].Term != "foghorn" {
		t.Errorf("glossary = %v", ringC.Glossary)
	}
	if len(ringC.OpenThreads) != 0 || ringC.OpenThreads == nil {
		t.Errorf("open threads = %v", ringC.OpenThreads)
	}
}

func TestApplyIncludeZeroesExcludedRings(t *testing.T) {
	ringA := BuildRingA(baseSpec(), nil)
	ringB := BuildRingB(scenePlanFixture(), domain.SceneBeats{}, rosterFixture(), nil, nil)
	ringC := BuildRingC("summary", nil, nil, ringB)

	gotA, gotB, gotC := ApplyInclude(IncludeRingB, ringA, ringB, ringC)
	if !reflect.DeepEqual(gotA, domain.EmptyRingA()) {
		t.Errorf("ringA not zeroed: %+v", gotA)
	}
	if !reflect.DeepEqual(gotC, domain.EmptyRingC()) {
		t.Errorf("ringC not zeroed: %+v", gotC)
	}
	if gotB.SceneGoal != ringB.SceneGoal {
		t.Error("included ring must pass through unchanged")
	}

	gotA, gotB, gotC = ApplyInclude(IncludeAll, ringA, ringB, ringC)
	if gotA.Premise == "" || gotB.SceneGoal == "" || gotC.PriorSceneSummary == "" {
		t.Error("all mode must keep every ring")
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
