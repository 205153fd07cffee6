// Package generate runs the draft/validate/repair loop around the model
// backend. Every structured artifact in the pipeline is produced the same
// way: one draft request, a validation pass against the artifact's JSON
// schema plus any stage-specific checks, and at most one repair request
// before the stage fails hard.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

// TerminalError means the backend produced invalid output twice for the
// same stage. The pipeline stops; partial artifacts are not written.
type TerminalError struct {
	Stage      string
	Schema     string
	Violations []string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s: output failed validation after repair (%s): %s",
		e.Stage, e.Schema, strings.Join(e.Violations, "; "))
}

// Request describes one structured generation.
type Request struct {
	Stage       string
	Kind        schema.Kind
	System      string
	User        string
	Temperature float64
	MaxTokens   int

	// Format overrides the schema name in the repair prompt. Composite
	// stages whose output wraps several schemas set this and leave Kind
	// empty, carrying all validation in Check.
	Format string

	// Check adds stage-specific violations beyond the schema, such as
	// cross-references between an index and its entries. Violations it
	// returns feed the repair prompt exactly like schema violations.
	Check func(payload json.RawMessage) []string
}

type Protocol struct {
	client  agent.Chatter
	schemas *schema.Validator
	logger  *slog.Logger
}

func NewProtocol(client agent.Chatter, schemas *schema.Validator, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{
		client:  client,
		schemas: schemas,
		logger:  logger.With("component", "generate"),
	}
}

// Generate drafts, validates, and repairs once. On success the returned
// payload has passed the schema for req.Kind and req.Check. The backend
// is called at most twice.
func (p *Protocol) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	opts := agent.ChatOptions{Temperature: req.Temperature, MaxTokens: req.MaxTokens}

	content, err := p.client.Chat(ctx, []agent.Message{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.User},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Stage, err)
	}

	payload, violations, err := p.attempt(req, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Stage, err)
	}
	if len(violations) == 0 {
		return payload, nil
	}

	p.logger.Warn("draft failed validation, attempting repair",
		"stage", req.Stage,
		"schema", string(req.Kind),
		"violation_count", len(violations))

	return p.Repair(ctx, req, content, violations)
}

// Repair asks the backend to fix an invalid payload once. Used by
// Generate and directly by stages that assemble a payload themselves
// before validating it.
func (p *Protocol) Repair(ctx context.Context, req Request, invalid string, violations []string) (json.RawMessage, error) {
	opts := agent.ChatOptions{Temperature: req.Temperature, MaxTokens: req.MaxTokens}

	content, err := p.client.Chat(ctx, repairMessages(req.format(), invalid, violations), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: repair: %w", req.Stage, err)
	}

	payload, repairedViolations, err := p.attempt(req, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Stage, err)
	}
	if len(repairedViolations) > 0 {
		p.logger.Error("repair failed validation",
			"stage", req.Stage,
			"schema", string(req.Kind),
			"violation_count", len(repairedViolations))
		return nil, &TerminalError{
			Stage:      req.Stage,
			Schema:     req.format(),
			Violations: repairedViolations,
		}
	}
	return payload, nil
}

// attempt parses one backend response and collects every violation, so
// the repair prompt can name all problems at once.
func (p *Protocol) attempt(req Request, content string) (json.RawMessage, []string, error) {
	text := StripFences(content)
	if !json.Valid([]byte(text)) {
		return nil, []string{"Response is not valid JSON"}, nil
	}
	payload := json.RawMessage(text)

	var violations []string
	if req.Kind != "" {
		var err error
		violations, err = p.schemas.Validate(req.Kind, payload)
		if err != nil {
			return nil, nil, err
		}
	}
	if req.Check != nil {
		violations = append(violations, req.Check(payload)...)
	}
	if len(violations) > 0 {
		return nil, violations, nil
	}
	return payload, nil, nil
}

func (r Request) format() string {
	if r.Format != "" {
		return r.Format
	}
	return string(r.Kind)
}

func repairMessages(format string, invalid string, violations []string) []agent.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "The previous response was invalid. Return ONLY valid JSON (no markdown fences) that matches %s.\n", format)
	b.WriteString("Errors:\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	b.WriteString("\nInvalid response:\n")
	b.WriteString(invalid)

	return []agent.Message{
		{Role: "system", Content: "You must output valid JSON only."},
		{Role: "user", Content: b.String()},
	}
}

// StripFences removes a markdown code fence wrapping a response. Models
// often return ```json blocks even when told not to.
func StripFences(text string) string {
	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(stripped, "```") && strings.HasSuffix(stripped, "```") {
		lines := strings.Split(stripped, "\n")
		if len(lines) >= 2 {
			return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}
	return stripped
}
