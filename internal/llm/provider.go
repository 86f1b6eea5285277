// Package llm is the Content Generator abstraction: a provider-neutral
// request/response model, SDK-backed providers and decorators for schema
// validation, audit logging and fault isolation.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates model output for a request.
type Provider interface {
	// Generate sends a prompt and returns the model output. When the
	// request carries a Schema the output is JSON conforming to it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name identifies the backend ("anthropic", "openai", ...).
	Name() string

	// ModelID returns the model identifier the provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	System   string
	Messages []Message

	// Schema is the JSON Schema the response must conform to. Providers use
	// their native structured output mechanism when it is set.
	Schema *Schema

	MaxTokens int

	// Temperature controls randomness. Zero leaves the provider default.
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies this schema (tool name for Anthropic, schema name for
	// OpenAI). Kebab-case, e.g. "answer-evaluation".
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the model output.
type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// resolveModel maps a friendly model name to a provider model ID. Unknown
// names pass through so callers can use direct IDs.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
