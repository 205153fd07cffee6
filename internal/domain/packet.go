package domain

// ContextPacket is the bounded context document handed to the prose stage.
// It must validate against its schema before being persisted.
type ContextPacket struct {
	SceneID int       `json:"scene_id"`
	Build   BuildInfo `json:"build"`
	RingA   RingA     `json:"ringA"`
	RingB   RingB     `json:"ringB"`
	RingC   RingC     `json:"ringC"`
}

// BuildInfo is provenance metadata for the packet build. Sources record
// what was actually read, not what was requested.
type BuildInfo struct {
	CreatedAt          string   `json:"created_at"`
	BudgetTokens       int      `json:"budget_tokens"`
	ResolutionStrategy string   `json:"resolution_strategy"`
	Include            string   `json:"include"`
	Sources            []Source `json:"sources"`
}

type Source struct {
	ArtifactID     string `json:"artifact_id"`
	ResolutionUsed string `json:"resolution_used"`
}

// RingA is the global layer: premise, voice, and story-wide constraints.
type RingA struct {
	Premise           string   `json:"premise"`
	Tone              []string `json:"tone"`
	POV               string   `json:"pov"`
	Tense             string   `json:"tense"`
	GlobalConstraints []string `json:"global_constraints"`
	StyleRules        []string `json:"style_rules"`
}

// RingB is the scene-local layer: plan, cast, beats, and relevant locks.
type RingB struct {
	SceneGoal       string      `json:"scene_goal"`
	Setting         RingSetting `json:"setting"`
	Cast            []Character `json:"cast"`
	Beats           []Beat      `json:"beats"`
	ContinuityLocks []Lock      `json:"continuity_locks"`
}

type RingSetting struct {
	Location Location `json:"location"`
	Time     string   `json:"time"`
	MoodTags []string `json:"mood_tags"`
}

type Location struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Constraints []string `json:"constraints"`
}

// RingC is the cross-scene memory layer.
type RingC struct {
	PriorSceneSummary string          `json:"prior_scene_summary"`
	OpenThreads       []string        `json:"open_threads"`
	RelevantFacts     []string        `json:"relevant_facts"`
	Glossary          []GlossaryEntry `json:"glossary"`
}

// EmptyRingA is the canonical zeroed Ring A used by include-mode filtering.
func EmptyRingA() RingA {
	return RingA{
		Premise:           "",
		Tone:              []string{},
		POV:               "first",
		Tense:             "past",
		GlobalConstraints: []string{},
		StyleRules:        []string{},
	}
}

// EmptyRingB is the canonical zeroed Ring B.
func EmptyRingB() RingB {
	return RingB{
		SceneGoal: "",
		Setting: RingSetting{
			Location: Location{ID: "", Name: "", Constraints: []string{}},
			Time:     "",
			MoodTags: []string{},
		},
		Cast:            []Character{},
		Beats:           []Beat{},
		ContinuityLocks: []Lock{},
	}
}

// EmptyRingC is the canonical zeroed Ring C.
func EmptyRingC() RingC {
	return RingC{
		PriorSceneSummary: "N/A",
		OpenThreads:       []string{},
		RelevantFacts:     []string{},
		Glossary:          []GlossaryEntry{},
	}
}
