// Package schema wraps JSON Schema validation behind a typed per-artifact
// contract. The schema documents themselves are the portable source of
// truth, embedded and compiled once; this adapter is the only code that
// understands their format.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Kind names one artifact schema document.
type Kind string

const (
	PlotIntent       Kind = "plot-intent.schema.json"
	PlotSpine        Kind = "plot-spine.schema.json"
	ScenesIndex      Kind = "scenes-index.schema.json"
	ScenePlan        Kind = "scene-plan.schema.json"
	SceneBeats       Kind = "scene-beats.schema.json"
	StyleProfile     Kind = "style-profile.schema.json"
	ContextPacket    Kind = "scene-context-packet.schema.json"
	ContinuityReport Kind = "continuity-report.schema.json"
	ScenePatch       Kind = "scene-patch.schema.json"
)

// Validator compiles schema documents on first use and caches them for the
// life of the process.
type Validator struct {
	mu       sync.Mutex
	compiled map[Kind]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{compiled: make(map[Kind]*jsonschema.Schema)}
}

// Validate checks payload against the named schema and returns all
// violation messages, empty when valid. Payload may be raw JSON bytes, a
// decoded tree, or any JSON-marshalable value. A non-nil error means the
// adapter itself failed, not that the payload is invalid.
func (v *Validator) Validate(kind Kind, payload any) ([]string, error) {
	sch, err := v.schema(kind)
	if err != nil {
		return nil, err
	}

	value, err := toJSONValue(payload)
	if err != nil {
		return nil, fmt.Errorf("preparing payload for %s: %w", kind, err)
	}

	err = sch.Validate(value)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("validating against %s: %w", kind, err)
	}
	return flatten(ve), nil
}

func (v *Validator) schema(kind Kind) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.compiled[kind]; ok {
		return sch, nil
	}
	data, err := schemaFS.ReadFile("schemas/" + string(kind))
	if err != nil {
		return nil, fmt.Errorf("unknown schema %s: %w", kind, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(string(kind), bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", kind, err)
	}
	sch, err := compiler.Compile(string(kind))
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", kind, err)
	}
	v.compiled[kind] = sch
	return sch, nil
}

// flatten turns the validation error tree into one human-readable message
// per leaf violation, suitable for embedding in a repair prompt.
func flatten(ve *jsonschema.ValidationError) []string {
	basic := ve.BasicOutput()
	var messages []string
	for _, unit := range basic.Errors {
		if unit.Error == "" {
			continue
		}
		location := unit.InstanceLocation
		if location == "" {
			location = "/"
		}
		messages = append(messages, fmt.Sprintf("%s: %s", location, unit.Error))
	}
	if len(messages) == 0 {
		messages = []string{ve.Error()}
	}
	return messages
}

func toJSONValue(payload any) (any, error) {
	var data []byte
	switch p := payload.(type) {
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = encoded
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
