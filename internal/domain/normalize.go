package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Continuity, world, and character artifacts arrive in loose shapes: a bare
// list, or an object wrapping the list under a well-known key. Each adapter
// below normalizes one artifact kind exactly once, at load time, so ring
// construction works on typed values only.

// itemsOf accepts a bare JSON array or an object wrapping one under any of
// the given keys, and returns the elements. Anything else yields nil.
func itemsOf(raw any, keys ...string) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range keys {
			if items, ok := v[key].([]any); ok {
				return items
			}
		}
	}
	return nil
}

// LocksFrom normalizes a continuity-locks artifact (bare list or
// {locks:[...]} / {items:[...]} wrapper) into lock records. Unrecognized
// severities degrade to "should".
func LocksFrom(raw json.RawMessage) []Lock {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}
	items := itemsOf(tree, "locks", "items")
	locks := make([]Lock, 0, len(items))
	for _, item := range items {
		locks = append(locks, lockFrom(item))
	}
	return locks
}

func lockFrom(item any) Lock {
	entry, ok := item.(map[string]any)
	if !ok {
		return Lock{ID: "unknown", Statement: fmt.Sprintf("%v", item), Severity: "should", Tags: []string{}}
	}
	id := stringAt(entry, "id")
	if id == "" {
		id = stringAt(entry, "lock_id")
	}
	if id == "" {
		id = "unknown"
	}
	statement := stringAt(entry, "statement")
	if statement == "" {
		statement = stringAt(entry, "text")
	}
	severity := stringAt(entry, "severity")
	if severity != "must" && severity != "should" {
		severity = "should"
	}
	return Lock{
		ID:        id,
		Statement: statement,
		Severity:  severity,
		Tags:      StringList(entry["tags"]),
	}
}

// FactStatements normalizes a continuity-facts artifact into plain
// statement strings. Facts may be bare strings or {statement|text} objects.
func FactStatements(raw json.RawMessage) []string {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}
	items := itemsOf(tree, "facts", "items")
	statements := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			statements = append(statements, v)
		case map[string]any:
			statement := stringAt(v, "statement")
			if statement == "" {
				statement = stringAt(v, "text")
			}
			statements = append(statements, statement)
		}
	}
	return statements
}

// CharactersFrom normalizes a characters artifact: a bare list of records,
// or records under a "characters" or "items" key.
func CharactersFrom(raw json.RawMessage) []Character {
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}
	items := itemsOf(tree, "characters", "items")
	characters := make([]Character, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		characters = append(characters, Character{
			ID:           stringAt(entry, "id"),
			Name:         stringAt(entry, "name"),
			Role:         stringAt(entry, "role"),
			VoiceTics:    StringList(entry["voice_tics"]),
			CurrentState: stringAt(entry, "current_state"),
			WantsNow:     StringList(entry["wants_now"]),
			Taboos:       StringList(entry["taboos"]),
		})
	}
	return characters
}

// FindCharacter matches a cast name case-insensitively against character
// ids and names.
func FindCharacter(characters []Character, name string) (Character, bool) {
	target := strings.ToLower(name)
	for _, c := range characters {
		if strings.ToLower(c.ID) == target || strings.ToLower(c.Name) == target {
			return c, true
		}
	}
	return Character{}, false
}

// StateOverrides extracts per-character current_state overrides from a
// chapter character-state artifact of the form
// {characters: {<id>: {current_state: "..."}}}.
func StateOverrides(raw json.RawMessage) map[string]string {
	var tree struct {
		Characters map[string]struct {
			CurrentState string `json:"current_state"`
		} `json:"characters"`
	}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}
	overrides := make(map[string]string, len(tree.Characters))
	for id, state := range tree.Characters {
		if state.CurrentState != "" {
			overrides[id] = state.CurrentState
		}
	}
	return overrides
}

// GlossaryFrom extracts well-formed {term, definition} entries from a
// world artifact's glossary list.
func GlossaryFrom(raw json.RawMessage) []GlossaryEntry {
	var tree struct {
		Glossary []struct {
			Term       string `json:"term"`
			Definition string `json:"definition"`
		} `json:"glossary"`
	}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}
	entries := make([]GlossaryEntry, 0, len(tree.Glossary))
	for _, e := range tree.Glossary {
		if e.Term == "" || e.Definition == "" {
			continue
		}
		entries = append(entries, GlossaryEntry{Term: e.Term, Definition: e.Definition})
	}
	return entries
}

// StringList coerces a decoded JSON value into a string slice: lists are
// stringified element-wise, nil becomes empty, and any scalar becomes a
// single-element list.
func StringList(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

func stringAt(entry map[string]any, key string) string {
	if s, ok := entry[key].(string); ok {
		return s
	}
	return ""
}
