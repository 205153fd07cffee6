package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
)

// LengthPresets map the --length flag to word targets.
var LengthPresets = map[string]int{
	"short":  600,
	"medium": 1000,
	"long":   1500,
}

type WriteParams struct {
	SceneID     int
	Length      string
	TargetWords int
	Force       bool
	RunID       string
}

type WriteResult struct {
	Draft string
	Meta  artifact.Meta
	Path  string
}

// WriteScene drafts prose for one scene from its context packet. A
// draft outside the word window or with too few paragraphs gets one
// corrective rewrite, then one expansion pass, before failing.
func WriteScene(ctx context.Context, env Env, p WriteParams) (*WriteResult, error) {
	draftPath := env.Layout.SceneDraft(p.SceneID)
	if artifact.Exists(draftPath) && !p.Force {
		env.logger().Info("scene draft exists, skipping", "scene_id", p.SceneID)
		return nil, nil
	}

	contextPath := env.Layout.SceneContext(p.SceneID)
	contextText, err := os.ReadFile(contextPath)
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: "context packet", Path: contextPath, Stage: "build-context"}
	}
	if err != nil {
		return nil, err
	}

	var packet domain.ContextPacket
	if err := json.Unmarshal(contextText, &packet); err != nil {
		return nil, fmt.Errorf("parsing context packet: %w", err)
	}

	target := p.TargetWords
	if target == 0 {
		preset, ok := LengthPresets[p.Length]
		if !ok {
			return nil, fmt.Errorf("unknown length preset %q", p.Length)
		}
		target = preset
	}

	opts := agent.ChatOptions{Temperature: 0.7, MaxTokens: target * 2}
	system := "You are a professional fiction writer executing a constrained writing task."

	draft, err := env.Client.Chat(ctx, []agent.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: writePrompt(contextText, target, p.Length)},
	}, opts)
	if err != nil {
		return nil, err
	}

	issues := validateDraft(draft, target, len(packet.RingB.Beats))
	if len(issues) > 0 {
		env.logger().Warn("draft failed validation, retrying",
			"scene_id", p.SceneID,
			"issues", strings.Join(issues, "; "))
		draft, err = env.Client.Chat(ctx, []agent.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: retryPrompt(contextText, target, p.Length, issues)},
		}, opts)
		if err != nil {
			return nil, err
		}
		issues = validateDraft(draft, target, len(packet.RingB.Beats))
	}
	if len(issues) > 0 {
		env.logger().Warn("retry failed validation, expanding",
			"scene_id", p.SceneID,
			"issues", strings.Join(issues, "; "))
		draft, err = env.Client.Chat(ctx, []agent.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: expandPrompt(contextText, target, draft)},
		}, opts)
		if err != nil {
			return nil, err
		}
		issues = validateDraft(draft, target, len(packet.RingB.Beats))
		if len(issues) > 0 {
			return nil, fmt.Errorf("draft failed validation: %s", strings.Join(issues, "; "))
		}
	}

	if err := artifact.WriteText(draftPath, draft); err != nil {
		return nil, err
	}

	meta := artifact.Meta{
		CreatedAt:   artifact.Timestamp(time.Now()),
		Model:       env.Client.Model(),
		Backend:     env.Client.Backend(),
		TargetWords: target,
		Length:      p.Length,
		InputHash:   artifact.HashBytes(contextText),
		RunID:       p.RunID,
	}
	if err := artifact.WriteJSON(env.Layout.SceneDraftMeta(p.SceneID), meta); err != nil {
		return nil, err
	}

	env.logger().Info("scene drafted",
		"scene_id", p.SceneID,
		"target_words", target,
		"word_count", len(strings.Fields(draft)))

	return &WriteResult{Draft: draft, Meta: meta, Path: draftPath}, nil
}

func writePrompt(contextText []byte, target int, length string) string {
	rules := "Hard rules:\n" +
		"- Use ONLY the provided context packet.\n" +
		"- Follow POV and tense from ringA exactly.\n" +
		"- Follow all ringA.style_rules.\n" +
		"- Obey all continuity_locks in ringB (severity 'must' is absolute).\n" +
		"- Hit EVERY beat in ringB.beats in order.\n" +
		"- Use one paragraph per beat, in order.\n" +
		"- Do NOT invent new plot events, characters, locations, or lore.\n" +
		"- Do NOT contradict ringA global constraints.\n" +
		"- If cast size > 1, include dialogue.\n" +
		"- If cast size == 1, interiority is allowed.\n" +
		"- End naturally unless a 'hook' beat is present; then emphasize it.\n" +
		"- No summaries of future scenes, no meta commentary, no exposition ungrounded in setting.\n" +
		"- Output prose only (markdown text), no JSON, no headings unless in the prose.\n"

	lengthBlock := fmt.Sprintf("Target length: %s (~%d words). Stay within +/-30%% of the target.\n", length, target)

	checklist := "Checklist:\n" +
		"- POV?\n" +
		"- Tense?\n" +
		"- Final beat reached?\n" +
		"- Locks obeyed?\n"

	return rules + "\n" + lengthBlock + "\nContext packet JSON:\n" + string(contextText) + "\n\n" + checklist
}

func retryPrompt(contextText []byte, target int, length string, issues []string) string {
	var b strings.Builder
	b.WriteString("The previous draft failed validation. Fix the issues and rewrite.\nIssues:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	fmt.Fprintf(&b, "\nTarget length: %s (~%d words), stay within +/-30%%.\n", length, target)
	b.WriteString("Output prose only, no JSON, no commentary.\n\nContext packet JSON:\n")
	b.Write(contextText)
	return b.String()
}

func expandPrompt(contextText []byte, target int, draft string) string {
	minWords := int(float64(target) * 0.7)
	maxWords := int(float64(target) * 1.3)
	return "Expand the draft to fit the target length without changing events. " +
		"Keep POV and tense, preserve beat order, add detail and dialogue where appropriate. " +
		fmt.Sprintf("Target length: %d-%d words. ", minWords, maxWords) +
		"Return the FULL expanded scene, no commentary.\n\n" +
		"Context packet JSON:\n" + string(contextText) + "\n\n" +
		"Draft to expand:\n" + draft
}

// validateDraft checks the word window (60-140% of target) and that the
// paragraph count is at least half the beat count, rounded up.
func validateDraft(draft string, target int, beatCount int) []string {
	text := strings.TrimSpace(draft)
	if text == "" {
		return []string{"Draft is empty"}
	}

	var issues []string
	wordCount := len(strings.Fields(text))
	minWords := int(float64(target) * 0.6)
	maxWords := int(float64(target) * 1.4)
	if wordCount < minWords || wordCount > maxWords {
		issues = append(issues, fmt.Sprintf("Word count %d outside %d-%d", wordCount, minWords, maxWords))
	}

	if beatCount > 0 {
		minParagraphs := int(math.Ceil(float64(beatCount) / 2))
		if countParagraphs(text) < minParagraphs {
			issues = append(issues, "Paragraph count too low for beats")
		}
	}
	return issues
}

func countParagraphs(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}
