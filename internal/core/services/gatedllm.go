package services

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// Ensure GatedLLM implements the provider interface.
var _ driven.LLMProvider = (*GatedLLM)(nil)

// GatedLLM wraps an LLMProvider so every call passes through the call
// gate at a fixed priority. Services hold a GatedLLM, never the raw
// provider, which keeps the rate budget global.
type GatedLLM struct {
	inner    driven.LLMProvider
	gate     *CallGate
	priority Priority
}

// NewGatedLLM wraps provider with the gate at the given priority.
func NewGatedLLM(provider driven.LLMProvider, gate *CallGate, priority Priority) *GatedLLM {
	return &GatedLLM{inner: provider, gate: gate, priority: priority}
}

// Complete runs a gated completion with retries.
func (g *GatedLLM) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	var out string
	err := g.gate.Do(ctx, g.priority, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Complete(ctx, req)
		return err
	})
	return out, err
}

// CompleteStream runs a gated streaming completion. Retries stop once
// the first token has been forwarded: replaying a partial stream would
// duplicate output at the client.
func (g *GatedLLM) CompleteStream(ctx context.Context, req driven.CompletionRequest, onToken func(string) error) (string, error) {
	var out string
	started := false
	err := g.gate.Do(ctx, g.priority, func(ctx context.Context) error {
		var err error
		out, err = g.inner.CompleteStream(ctx, req, func(token string) error {
			started = true
			return onToken(token)
		})
		if err != nil && started {
			return nonRetryable{err}
		}
		return err
	})
	if nr, ok := err.(nonRetryable); ok {
		return out, nr.error
	}
	return out, err
}

// Embed runs a gated embedding call with retries.
func (g *GatedLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := g.gate.Do(ctx, g.priority, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

// ModelName reports the wrapped provider's model.
func (g *GatedLLM) ModelName() string { return g.inner.ModelName() }

// Ping checks the wrapped provider, bypassing the gate: a health probe
// must not consume the call budget.
func (g *GatedLLM) Ping(ctx context.Context) error { return g.inner.Ping(ctx) }

// Close closes the wrapped provider. The gate itself is shared and is
// closed by its owner.
func (g *GatedLLM) Close() error { return g.inner.Close() }

// nonRetryable stops the gate's retry loop for errors that are
// transient in kind but unsafe to retry in context.
type nonRetryable struct{ error }

func (n nonRetryable) Unwrap() error { return n.error }
