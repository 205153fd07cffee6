package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

type ContinuityResult struct {
	Report     json.RawMessage
	Patch      json.RawMessage
	Meta       artifact.Meta
	ReportPath string
	PatchPath  string
}

// checkerInput is the mechanical projection of packet + prose handed to
// the checker. Only the fields a continuity verdict can depend on.
type checkerInput struct {
	SceneID           int           `json:"scene_id"`
	Input             string        `json:"input"`
	POV               string        `json:"pov"`
	Tense             string        `json:"tense"`
	GlobalConstraints []string      `json:"global_constraints"`
	Beats             []domain.Beat `json:"beats"`
	Locks             []domain.Lock `json:"locks"`
	Prose             string        `json:"prose"`
}

// CheckContinuity audits a scene's prose against its context packet,
// producing a continuity report and a patch plan. inputKind selects
// which prose to audit, "draft" or "final".
func CheckContinuity(ctx context.Context, env Env, sceneID int, inputKind string, force bool, runID string) (*ContinuityResult, error) {
	if inputKind != "draft" && inputKind != "final" {
		return nil, fmt.Errorf("unknown input kind %q", inputKind)
	}

	reportPath := env.Layout.ContinuityReport(sceneID)
	patchPath := env.Layout.ScenePatch(sceneID)
	if artifact.Exists(reportPath) && artifact.Exists(patchPath) && !force {
		env.logger().Info("continuity artifacts exist, skipping", "scene_id", sceneID)
		return nil, nil
	}

	contextPath := env.Layout.SceneContext(sceneID)
	contextText, err := os.ReadFile(contextPath)
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "context packet", Path: contextPath, Stage: "build-context"}
	}
	if err != nil {
		return nil, err
	}

	prosePath := env.Layout.SceneProse(sceneID, inputKind)
	proseText, err := os.ReadFile(prosePath)
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: inputKind + " prose", Path: prosePath, Stage: "write scene"}
	}
	if err != nil {
		return nil, err
	}

	var packet domain.ContextPacket
	if err := json.Unmarshal(contextText, &packet); err != nil {
		return nil, fmt.Errorf("parsing context packet: %w", err)
	}

	input := checkerInput{
		SceneID:           packet.SceneID,
		Input:             inputKind,
		POV:               packet.RingA.POV,
		Tense:             packet.RingA.Tense,
		GlobalConstraints: packet.RingA.GlobalConstraints,
		Beats:             packet.RingB.Beats,
		Locks:             packet.RingB.ContinuityLocks,
		Prose:             string(proseText),
	}
	inputText := canonicalText(input)

	report, err := env.Protocol.Generate(ctx, reportRequest(inputText))
	if err != nil {
		return nil, err
	}

	patch, err := env.Protocol.Generate(ctx, patchRequest(inputText, report))
	if err != nil {
		return nil, err
	}

	if err := artifact.WriteJSON(reportPath, report); err != nil {
		return nil, err
	}
	if err := artifact.WriteJSON(patchPath, patch); err != nil {
		return nil, err
	}

	meta := artifact.Meta{
		CreatedAt: artifact.Timestamp(time.Now()),
		Model:     env.Client.Model(),
		Backend:   env.Client.Backend(),
		Input:     inputKind,
		InputHashes: map[string]string{
			"context": artifact.HashBytes(contextText),
			"prose":   artifact.HashBytes(proseText),
		},
		RunID: runID,
	}
	if err := artifact.WriteJSON(env.Layout.ContinuityMeta(sceneID), meta); err != nil {
		return nil, err
	}

	env.logger().Info("continuity checked",
		"scene_id", sceneID,
		"input", inputKind)

	return &ContinuityResult{
		Report:     report,
		Patch:      patch,
		Meta:       meta,
		ReportPath: reportPath,
		PatchPath:  patchPath,
	}, nil
}

func reportRequest(inputText string) generate.Request {
	user := "Analyze the prose for beat coverage, continuity locks, POV, and tense. " +
		"Be mechanical: quote short evidence snippets from the prose for every finding. " +
		"Do not rewrite the prose and do not invent issues the input cannot support.\n\n" +
		"Checker input JSON:\n" + inputText
	return generate.Request{
		Stage:       "check continuity",
		Kind:        schema.ContinuityReport,
		System:      "You are a mechanical continuity checker. Output JSON only.",
		User:        user,
		Temperature: 0.1,
		MaxTokens:   2000,
	}
}

func patchRequest(inputText string, report json.RawMessage) generate.Request {
	user := "Plan minimal text edits that resolve the report's issues without changing events, " +
		"beat order, POV, or tense. Each edit must quote the exact text to find. " +
		"If the report has no issues, return an empty edit list.\n\n" +
		"Continuity report JSON:\n" + string(report) + "\n\n" +
		"Checker input JSON:\n" + inputText
	return generate.Request{
		Stage:       "plan patch",
		Kind:        schema.ScenePatch,
		System:      "You are a mechanical patch planner. Output JSON only.",
		User:        user,
		Temperature: 0.1,
		MaxTokens:   1500,
	}
}
