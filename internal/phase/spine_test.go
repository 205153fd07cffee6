package phase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
)

func TestPlanSpine(t *testing.T) {
	root := t.TempDir()
	mock := agent.NewMockClient(testSpineJSON)
	env := newTestEnv(t, root, mock)
	writeTestFile(t, env.Layout.InputsSpec(), testSpecJSON)
	writeTestFile(t, env.Layout.InputsPlotIntent(), `{
  "plot_intent": {"core_arc": "denial to acceptance", "themes": [], "central_question": ""}
}`)

	result, err := PlanSpine(context.Background(), env, false, "run-1")
	if err != nil {
		t.Fatalf("PlanSpine: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("backend calls = %d, want 1", mock.CallCount())
	}

	if !artifact.Exists(env.Layout.PlotSpine()) {
		t.Error("spine not persisted")
	}
	var spine domain.PlotSpine
	if err := artifact.ReadJSON(env.Layout.PlotSpine(), &spine); err != nil {
		t.Fatal(err)
	}
	if len(spine.Acts) != 1 || spine.Acts[0].Chapters[0].ChapterNo != 1 {
		t.Errorf("unexpected spine content: %+v", spine)
	}

	if result.Meta.RunID != "run-1" {
		t.Errorf("run_id = %q", result.Meta.RunID)
	}
	if result.Meta.InputHashes["story_spec"] == "" {
		t.Error("story_spec hash missing")
	}
	if result.Meta.InputHashes["plot_intent"] == "" {
		t.Error("plot_intent hash missing")
	}

	// Both spec and intent appear in the prompt.
	prompt := mock.Calls[0].Messages[1].Content
	for _, want := range []string{"The Hollow Light", "denial to acceptance"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPlanSpineSkipsExisting(t *testing.T) {
	root := t.TempDir()
	mock := agent.NewMockClient()
	env := newTestEnv(t, root, mock)
	writeTestFile(t, env.Layout.InputsSpec(), testSpecJSON)
	writeTestFile(t, env.Layout.PlotSpine(), testSpineJSON)

	result, err := PlanSpine(context.Background(), env, false, "run-1")
	if err != nil {
		t.Fatalf("PlanSpine: %v", err)
	}
	if result != nil {
		t.Error("expected nil result on cache hit")
	}
	if mock.CallCount() != 0 {
		t.Errorf("backend calls = %d, want 0", mock.CallCount())
	}
}

func TestPlanSpineRequiresSpec(t *testing.T) {
	root := t.TempDir()
	env := newTestEnv(t, root, agent.NewMockClient())

	_, err := PlanSpine(context.Background(), env, false, "run-1")
	var missing *artifact.MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %v", err)
	}
	if missing.Stage != "seed apply" {
		t.Errorf("stage = %q, want seed apply", missing.Stage)
	}
}

func TestSceneChapters(t *testing.T) {
	spine := domain.PlotSpine{Acts: []domain.SpineAct{
		{ActNo: 1, Chapters: []domain.SpineChapter{
			{ChapterNo: 1, Scenes: []int{1, 2}},
			{ChapterNo: 2, Scenes: []int{3}},
		}},
		{ActNo: 2, Chapters: []domain.SpineChapter{
			{ChapterNo: 3, Scenes: []int{4, 5}},
		}},
	}}

	byChapter, toChapter := SceneChapters(spine)

	if !reflect.DeepEqual(byChapter[1], []int{1, 2}) {
		t.Errorf("chapter 1 scenes = %v", byChapter[1])
	}
	if !reflect.DeepEqual(byChapter[3], []int{4, 5}) {
		t.Errorf("chapter 3 scenes = %v", byChapter[3])
	}
	if toChapter[3] != 2 || toChapter[5] != 3 {
		t.Errorf("toChapter = %v", toChapter)
	}
}
