// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"fmt"
)

// LLMProvider provides language model operations for the chat pipeline.
// All calls go through the call gate; implementations never rate-limit
// themselves.
//
// Implementations may include:
//   - OpenAI (GPT-4, GPT-3.5)
//   - OpenAI-compatible local servers (Ollama, LM Studio)
type LLMProvider interface {
	// Complete produces a full completion for the request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CompleteStream produces a completion, invoking onToken for each
	// generated fragment in order. It returns the full assembled text.
	// A non-nil error from onToken aborts the stream.
	CompleteStream(ctx context.Context, req CompletionRequest, onToken func(token string) error) (string, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the completion model being used.
	ModelName() string

	// Ping validates the provider is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// CompletionRequest configures one completion call.
type CompletionRequest struct {
	// Messages is the conversation so far, system prompt first.
	Messages []ChatMessage

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}

// ProviderError wraps a failure from the LLM provider with enough
// detail to classify it for retry.
type ProviderError struct {
	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int

	// Message is the provider's error text.
	Message string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider error: %s", e.Message)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying: rate limits,
// server-side errors and transport failures are; client errors are not.
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
