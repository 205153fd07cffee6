package ring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

// Builder assembles, validates, and persists scene context packets.
type Builder struct {
	layout   artifact.Layout
	client   agent.Chatter
	protocol *generate.Protocol
	schemas  *schema.Validator
	logger   *slog.Logger
}

func NewBuilder(layout artifact.Layout, client agent.Chatter, protocol *generate.Protocol, schemas *schema.Validator, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		layout:   layout,
		client:   client,
		protocol: protocol,
		schemas:  schemas,
		logger:   logger.With("component", "ring"),
	}
}

type Params struct {
	SceneID    int
	Budget     int
	Resolution artifact.Resolution
	Include    Include
	RunID      string
	Force      bool
}

// Result carries the persisted packet and its metadata. A nil Result
// with a nil error means the packet already existed and force was off.
type Result struct {
	Packet json.RawMessage
	Meta   artifact.Meta
	Path   string
}

// Build produces the context packet for one scene. The build itself is
// deterministic given the workspace; the backend is consulted only to
// summarize the prior scene and, if assembly somehow produces an
// invalid packet, for a single repair round.
func (b *Builder) Build(ctx context.Context, p Params) (*Result, error) {
	start := time.Now()
	contextPath := b.layout.SceneContext(p.SceneID)
	if artifact.Exists(contextPath) && !p.Force {
		b.logger.Info("context packet exists, skipping",
			"scene_id", p.SceneID,
			"path", contextPath)
		return nil, nil
	}

	specRaw, err := b.require(b.layout.InputsSpec(), "story spec", "seed apply")
	if err != nil {
		return nil, err
	}
	planRaw, err := b.require(b.layout.ScenePlan(p.SceneID), "scene plan", "plan scenes")
	if err != nil {
		return nil, err
	}
	beatsRaw, err := b.require(b.layout.SceneBeats(p.SceneID), "scene beats", "plan beats")
	if err != nil {
		return nil, err
	}

	var spec domain.StorySpec
	if err := json.Unmarshal(specRaw, &spec); err != nil {
		return nil, fmt.Errorf("parsing story spec: %w", err)
	}
	var plan domain.ScenePlan
	if err := json.Unmarshal(planRaw, &plan); err != nil {
		return nil, fmt.Errorf("parsing scene plan: %w", err)
	}
	var beats domain.SceneBeats
	if err := json.Unmarshal(beatsRaw, &beats); err != nil {
		return nil, fmt.Errorf("parsing scene beats: %w", err)
	}

	inputHashes := map[string]string{
		"story_spec":  artifact.HashBytes(specRaw),
		"scene_plan":  artifact.HashBytes(planRaw),
		"scene_beats": artifact.HashBytes(beatsRaw),
	}

	requiredRes := string(p.Resolution.Normalize())
	sources := []domain.Source{
		{ArtifactID: b.relID(b.layout.InputsSpec()), ResolutionUsed: requiredRes},
		{ArtifactID: artifact.PlanRef(p.SceneID), ResolutionUsed: requiredRes},
		{ArtifactID: artifact.BeatsRef(p.SceneID), ResolutionUsed: requiredRes},
	}

	var intent *domain.PlotIntent
	if raw, ok, err := artifact.ReadOptional(b.layout.InputsPlotIntent()); err != nil {
		return nil, err
	} else if ok {
		var pi domain.PlotIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("parsing plot intent: %w", err)
		}
		intent = &pi
		inputHashes["plot_intent"] = artifact.HashBytes(raw)
		sources = append(sources, domain.Source{
			ArtifactID:     b.relID(b.layout.InputsPlotIntent()),
			ResolutionUsed: requiredRes,
		})
	}

	var styleProfile *domain.StyleProfile
	if raw, ok, err := artifact.ReadOptional(b.layout.SeedStyleProfile()); err != nil {
		return nil, err
	} else if ok {
		violations, err := b.schemas.Validate(schema.StyleProfile, raw)
		if err != nil {
			return nil, err
		}
		if len(violations) > 0 {
			return nil, fmt.Errorf("style profile validation failed: %s", strings.Join(violations, "; "))
		}
		var sp domain.StyleProfile
		if err := json.Unmarshal(raw, &sp); err != nil {
			return nil, fmt.Errorf("parsing style profile: %w", err)
		}
		styleProfile = &sp
		inputHashes["style_profile"] = artifact.HashBytes(raw)
		sources = append(sources, domain.Source{
			ArtifactID:     b.relID(b.layout.SeedStyleProfile()),
			ResolutionUsed: "tiny",
		})
	}

	// The spine and index are read for provenance even though ring
	// assembly does not consume them directly yet.
	for _, opt := range []struct {
		path string
		key  string
	}{
		{b.layout.PlotSpine(), "plot_spine"},
		{b.layout.ScenesIndex(), "scenes_index"},
	} {
		if raw, ok, err := artifact.ReadOptional(opt.path); err != nil {
			return nil, err
		} else if ok {
			inputHashes[opt.key] = artifact.HashBytes(raw)
			sources = append(sources, domain.Source{
				ArtifactID:     b.relID(opt.path),
				ResolutionUsed: "tiny",
			})
		}
	}

	var locks []domain.Lock
	if raw, ok, err := artifact.ReadOptional(b.layout.ContinuityLocks()); err != nil {
		return nil, err
	} else if ok {
		locks = domain.LocksFrom(raw)
		inputHashes["continuity_locks"] = artifact.HashBytes(raw)
		sources = append(sources, domain.Source{
			ArtifactID:     b.relID(b.layout.ContinuityLocks()),
			ResolutionUsed: "tiny",
		})
	}

	var facts []string
	if raw, ok, err := artifact.ReadOptional(b.layout.ContinuityFacts()); err != nil {
		return nil, err
	} else if ok {
		facts = domain.FactStatements(raw)
		inputHashes["continuity_facts"] = artifact.HashBytes(raw)
		sources = append(sources, domain.Source{
			ArtifactID:     b.relID(b.layout.ContinuityFacts()),
			ResolutionUsed: "tiny",
		})
	}

	var glossary []domain.GlossaryEntry
	if raw, tier, ok, err := artifact.SelectTiered(b.layout.WorldDir(), p.Resolution); err != nil {
		return nil, err
	} else if ok {
		glossary = domain.GlossaryFrom(raw)
		inputHashes["world"] = hashCanonical(raw)
		sources = append(sources, domain.Source{
			ArtifactID:     b.relID(filepath.Join(b.layout.WorldDir(), string(tier)+".json")),
			ResolutionUsed: string(tier),
		})
	}

	var roster []domain.Character
	charactersTier := artifact.ResolutionTiny
	if raw, tier, ok, err := artifact.SelectTiered(b.layout.CharactersDir(), p.Resolution); err != nil {
		return nil, err
	} else if ok {
		roster = domain.CharactersFrom(raw)
		charactersTier = tier
		inputHashes["characters"] = hashCanonical(raw)
		sources = append(sources, domain.Source{
			ArtifactID:     b.relID(filepath.Join(b.layout.CharactersDir(), string(tier)+".json")),
			ResolutionUsed: string(tier),
		})
	}

	var stateOverrides map[string]string
	if plan.ChapterNo > 0 {
		statePath := b.layout.CharacterState(plan.ChapterNo)
		if raw, ok, err := artifact.ReadOptional(statePath); err != nil {
			return nil, err
		} else if ok {
			stateOverrides = domain.StateOverrides(raw)
			inputHashes["character_state"] = hashCanonical(raw)
			sources = append(sources, domain.Source{
				ArtifactID:     b.relID(statePath),
				ResolutionUsed: string(charactersTier),
			})
		}
	}

	priorSummary := ""
	if priorPath := b.priorScenePath(p.SceneID); priorPath != "" {
		content, err := os.ReadFile(priorPath)
		if err != nil {
			return nil, fmt.Errorf("reading prior scene: %w", err)
		}
		priorSummary, err = b.summarize(ctx, string(content))
		if err != nil {
			return nil, err
		}
		inputHashes["prior_scene"] = artifact.HashBytes(content)
		sources = append(sources, domain.Source{
			ArtifactID:     b.relID(priorPath),
			ResolutionUsed: "tiny",
		})
	}

	ringA := BuildRingA(spec, intent)
	if styleProfile != nil {
		ringA = ApplyStyleProfile(ringA, *styleProfile)
	}
	ringB := BuildRingB(plan, beats, roster, stateOverrides, locks)
	ringC := BuildRingC(priorSummary, facts, glossary, ringB)
	ringA, ringB, ringC = ApplyInclude(p.Include, ringA, ringB, ringC)

	packet := domain.ContextPacket{
		SceneID: p.SceneID,
		Build: domain.BuildInfo{
			CreatedAt:          artifact.Timestamp(time.Now()),
			BudgetTokens:       p.Budget,
			ResolutionStrategy: string(p.Resolution),
			Include:            string(p.Include),
			Sources:            sources,
		},
		RingA: ringA,
		RingB: ringB,
		RingC: ringC,
	}

	canon, err := artifact.CanonicalJSON(packet)
	if err != nil {
		return nil, err
	}
	payload := json.RawMessage(canon)

	violations, err := b.schemas.Validate(schema.ContextPacket, payload)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		b.logger.Warn("assembled packet failed validation, repairing",
			"scene_id", p.SceneID,
			"violation_count", len(violations))
		payload, err = b.protocol.Repair(ctx, generate.Request{
			Stage:       "build context",
			Kind:        schema.ContextPacket,
			Temperature: 0.2,
			MaxTokens:   1200,
		}, string(canon), violations)
		if err != nil {
			return nil, err
		}
	}

	if err := artifact.WriteJSON(contextPath, payload); err != nil {
		return nil, err
	}

	meta := artifact.Meta{
		CreatedAt:   artifact.Timestamp(time.Now()),
		Model:       b.client.Model(),
		Backend:     b.client.Backend(),
		InputHashes: inputHashes,
		RunID:       p.RunID,
		Budget:      p.Budget,
		Resolution:  string(p.Resolution),
		Include:     string(p.Include),
	}
	if err := artifact.WriteJSON(b.layout.SceneContextMeta(p.SceneID), meta); err != nil {
		return nil, err
	}

	b.logger.Info("context packet built",
		"scene_id", p.SceneID,
		"source_count", len(sources),
		"duration_ms", time.Since(start).Milliseconds(),
		"path", contextPath)

	return &Result{Packet: payload, Meta: meta, Path: contextPath}, nil
}

func (b *Builder) require(path, what, stage string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &artifact.MissingError{What: what, Path: path, Stage: stage}
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// priorScenePath prefers the checked final prose of the previous scene
// and falls back to its draft. Scene 1 has no prior.
func (b *Builder) priorScenePath(sceneID int) string {
	if sceneID <= 1 {
		return ""
	}
	if final := b.layout.SceneFinal(sceneID - 1); artifact.Exists(final) {
		return final
	}
	if draft := b.layout.SceneDraft(sceneID - 1); artifact.Exists(draft) {
		return draft
	}
	return ""
}

func (b *Builder) summarize(ctx context.Context, content string) (string, error) {
	summary, err := b.client.Chat(ctx, []agent.Message{
		{Role: "system", Content: "Summarize the scene in 3-5 sentences."},
		{Role: "user", Content: content},
	}, agent.ChatOptions{Temperature: 0.2, MaxTokens: 200})
	if err != nil {
		return "", fmt.Errorf("summarizing prior scene: %w", err)
	}
	return summary, nil
}

// relID converts an absolute artifact path into the slash-separated
// workspace-relative id recorded in packet sources.
func (b *Builder) relID(path string) string {
	rel, err := filepath.Rel(b.layout.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// hashCanonical hashes tiered artifacts through the canonical encoding
// so the hash is stable across formatting-only rewrites.
func hashCanonical(raw json.RawMessage) string {
	canon, err := artifact.CanonicalJSON(raw)
	if err != nil {
		return artifact.HashBytes(raw)
	}
	return artifact.HashBytes(canon)
}
