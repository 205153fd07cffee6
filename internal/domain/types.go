// Package domain defines the typed artifacts flowing through the pipeline:
// resolved story inputs, planning outputs, and the scene context packet.
package domain

// StorySpec is the resolved story specification written by seed apply and
// consumed by every downstream stage. Immutable once resolved.
type StorySpec struct {
	Title         string         `json:"title"`
	Logline       string         `json:"logline"`
	Genre         []string       `json:"genre"`
	Tone          []string       `json:"tone"`
	TargetLength  TargetLength   `json:"target_length"`
	POV           string         `json:"pov"`
	Tense         string         `json:"tense"`
	Constraints   Constraints    `json:"constraints"`
	Serialization *Serialization `json:"serialization,omitempty"`
}

type TargetLength struct {
	Unit  string `json:"unit"`
	Value int    `json:"value"`
}

type Constraints struct {
	Must    []string `json:"must"`
	MustNot []string `json:"must_not"`
}

type Serialization struct {
	Enabled bool `json:"enabled"`
}

// PlotIntent carries optional authorial intent. Absence means "no
// additional constraints"; the nested plot_intent key mirrors the artifact
// layout on disk.
type PlotIntent struct {
	Intent            IntentCore        `json:"plot_intent"`
	ProtagonistArc    map[string]string `json:"protagonist_arc,omitempty"`
	PlotConstraints   *PlotConstraints  `json:"plot_constraints,omitempty"`
	ActShape          map[string]Act    `json:"act_shape,omitempty"`
	EndingConstraints map[string]string `json:"ending_constraints,omitempty"`
}

type IntentCore struct {
	CoreArc         string   `json:"core_arc"`
	Themes          []string `json:"themes"`
	CentralQuestion string   `json:"central_question"`
}

type PlotConstraints struct {
	MustInclude []string `json:"must_include"`
	MustNot     []string `json:"must_not"`
}

type Act struct {
	Purpose string   `json:"purpose"`
	Beats   []string `json:"beats"`
}

// PlotSpine is the act/chapter/scene skeleton. Scene IDs are globally
// sequential integers starting at 1, each belonging to exactly one chapter.
type PlotSpine struct {
	Acts []SpineAct `json:"acts"`
}

type SpineAct struct {
	ActNo    int            `json:"act_no"`
	Summary  string         `json:"summary"`
	Chapters []SpineChapter `json:"chapters"`
}

type SpineChapter struct {
	ChapterNo     int      `json:"chapter_no"`
	Goal          string   `json:"goal"`
	TurningPoints []string `json:"turning_points"`
	Scenes        []int    `json:"scenes"`
	EndHook       string   `json:"end_hook,omitempty"`
}

// ScenePlan describes one scene: where, who, and what is at stake.
// BeatsRef must equal the canonical beats path for the scene id.
type ScenePlan struct {
	SceneID   int         `json:"scene_id"`
	ChapterNo int         `json:"chapter_no"`
	Title     string      `json:"title"`
	Setting   PlanSetting `json:"setting"`
	Cast      []string    `json:"cast"`
	Goal      string      `json:"goal"`
	Stakes    string      `json:"stakes"`
	BeatsRef  string      `json:"beats_ref"`
}

type PlanSetting struct {
	LocationID string   `json:"location_id"`
	Time       string   `json:"time"`
	MoodTags   []string `json:"mood_tags"`
}

// SceneBeats is the ordered beat list for a scene.
type SceneBeats struct {
	SceneID int    `json:"scene_id"`
	Beats   []Beat `json:"beats"`
}

type Beat struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	MustInclude []string `json:"must_include,omitempty"`
	MustAvoid   []string `json:"must_avoid,omitempty"`
}

// ScenesIndex maps every scene id to its plan and beats artifacts.
type ScenesIndex struct {
	Version int          `json:"version"`
	Scenes  []IndexEntry `json:"scenes"`
}

type IndexEntry struct {
	SceneID   int    `json:"scene_id"`
	ChapterNo int    `json:"chapter_no"`
	Title     string `json:"title"`
	PlanPath  string `json:"plan_path"`
	BeatsPath string `json:"beats_path"`
}

// StyleProfile is a read-only authorial voice profile folded into Ring A.
type StyleProfile struct {
	ProfileID      string            `json:"profile_id"`
	ProfileName    string            `json:"profile_name,omitempty"`
	Intent         string            `json:"intent,omitempty"`
	Tone           []string          `json:"tone,omitempty"`
	Syntax         *StyleSyntax      `json:"syntax,omitempty"`
	Diction        *StyleDiction     `json:"diction,omitempty"`
	Dialogue       *StyleDialogue    `json:"dialogue,omitempty"`
	Sensory        *StyleSensory     `json:"sensory,omitempty"`
	SceneRules     *SceneRules       `json:"scene_rules,omitempty"`
	OutputControls map[string]string `json:"output_controls,omitempty"`
	HorrorEngine   *HorrorEngine     `json:"horror_engine,omitempty"`
	CharacterVoice *CharacterVoice   `json:"character_voice,omitempty"`
}

type StyleSyntax struct {
	SentenceRhythm    string   `json:"sentence_rhythm,omitempty"`
	Paragraphing      string   `json:"paragraphing,omitempty"`
	RhetoricalDevices []string `json:"rhetorical_devices,omitempty"`
}

type StyleDiction struct {
	Register string   `json:"register,omitempty"`
	Allowed  []string `json:"allowed,omitempty"`
	Avoid    []string `json:"avoid,omitempty"`
	Note     string   `json:"note,omitempty"`
}

type StyleDialogue struct {
	Style       string   `json:"style,omitempty"`
	SubtextRule string   `json:"subtext_rule,omitempty"`
	CommonMoves []string `json:"common_moves,omitempty"`
}

type StyleSensory struct {
	PriorityOrder []string `json:"priority_order,omitempty"`
	Motifs        []string `json:"motifs,omitempty"`
}

type SceneRules struct {
	MustInclude []string `json:"must_include,omitempty"`
	MustNot     []string `json:"must_not,omitempty"`
}

type HorrorEngine struct {
	Principles []string `json:"principles,omitempty"`
	Taboos     []string `json:"taboos,omitempty"`
}

type CharacterVoice struct {
	Habits        []string `json:"habits,omitempty"`
	Unreliability []string `json:"unreliability,omitempty"`
}

// Character is a resolved cast record as embedded in Ring B. Unmatched
// cast names produce a stub with only id and name set.
type Character struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	VoiceTics    []string `json:"voice_tics"`
	CurrentState string   `json:"current_state"`
	WantsNow     []string `json:"wants_now"`
	Taboos       []string `json:"taboos"`
}

// Lock is a standing continuity constraint checked against prose.
// Severity is always normalized to "must" or "should".
type Lock struct {
	ID        string   `json:"id"`
	Statement string   `json:"statement"`
	Severity  string   `json:"severity"`
	Tags      []string `json:"tags"`
}

// GlossaryEntry is a world term included in Ring C when the scene
// actually references it.
type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}
