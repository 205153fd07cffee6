// Package agent talks to the model backend. It speaks two wire dialects,
// openai-compatible chat completions and the ollama native chat API, and
// resolves which one to use from configuration or by probing the endpoint.
package agent

import "context"

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tune a single request. A zero MaxTokens leaves the backend
// default in place.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// Chatter is the minimal surface the pipeline needs from a backend.
type Chatter interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	Backend() string
	Model() string
}
