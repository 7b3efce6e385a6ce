package domain

import (
	"fmt"
	"math"
)

// FusionConfig holds the reciprocal-rank-fusion parameters.
// Validated once at configuration load, not per call.
type FusionConfig struct {
	// VectorWeight is the weight applied to vector-list rank terms.
	VectorWeight float64

	// KeywordWeight is the weight applied to keyword-list rank terms.
	// VectorWeight + KeywordWeight must equal 1.0.
	KeywordWeight float64

	// RRFK is the reciprocal-rank-fusion constant (typically 60).
	RRFK int
}

// Validate checks the fusion parameters.
func (c FusionConfig) Validate() error {
	if c.RRFK <= 0 {
		return fmt.Errorf("%w: rrf k must be positive, got %d", ErrInvalidInput, c.RRFK)
	}
	if math.Abs(c.VectorWeight+c.KeywordWeight-1.0) > 1e-9 {
		return fmt.Errorf("%w: vector weight %.3f + keyword weight %.3f must sum to 1.0",
			ErrInvalidInput, c.VectorWeight, c.KeywordWeight)
	}
	if c.VectorWeight < 0 || c.KeywordWeight < 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative", ErrInvalidInput)
	}
	return nil
}

// RetrievalProfile is a named retrieval configuration. The live chat
// path uses the default profile; evaluation runs sweep over several.
type RetrievalProfile struct {
	// ID is the profile identifier referenced by evaluation triggers.
	ID string

	// Fusion holds the rank-fusion parameters.
	Fusion FusionConfig

	// TopK is the per-ranker fetch depth before fusion.
	TopK int

	// RelevanceThreshold is the minimum normalised relevance signal for
	// a fused result to be accepted without refinement (default 0.6).
	RelevanceThreshold float64

	// ContextPassages caps how many passages reach the generation prompt.
	ContextPassages int
}

// Validate checks the profile parameters.
func (p RetrievalProfile) Validate() error {
	if err := p.Fusion.Validate(); err != nil {
		return err
	}
	if p.TopK <= 0 {
		return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidInput, p.TopK)
	}
	if p.RelevanceThreshold < 0 || p.RelevanceThreshold > 1 {
		return fmt.Errorf("%w: relevance threshold must be in [0,1], got %.3f",
			ErrInvalidInput, p.RelevanceThreshold)
	}
	if p.ContextPassages <= 0 {
		return fmt.Errorf("%w: context passages must be positive, got %d",
			ErrInvalidInput, p.ContextPassages)
	}
	return nil
}

// DefaultRetrievalProfile returns the profile used when none is configured.
func DefaultRetrievalProfile() RetrievalProfile {
	return RetrievalProfile{
		ID: "default",
		Fusion: FusionConfig{
			VectorWeight:  0.6,
			KeywordWeight: 0.4,
			RRFK:          60,
		},
		TopK:               15,
		RelevanceThreshold: 0.6,
		ContextPassages:    8,
	}
}

// GateConfig holds the call gate limits.
type GateConfig struct {
	// RequestsPerMinute is the global provider call ceiling.
	RequestsPerMinute int

	// Burst is the token bucket burst allowance.
	Burst int

	// MaxConcurrent bounds simultaneous in-flight provider calls.
	MaxConcurrent int

	// BatchQueueThreshold is the wait queue depth above which batch
	// callers observe backpressure.
	BatchQueueThreshold int
}

// Validate checks the gate limits.
func (c GateConfig) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: requests per minute must be positive, got %d",
			ErrInvalidInput, c.RequestsPerMinute)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("%w: burst must be positive, got %d", ErrInvalidInput, c.Burst)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max concurrent must be positive, got %d",
			ErrInvalidInput, c.MaxConcurrent)
	}
	if c.BatchQueueThreshold <= 0 {
		return fmt.Errorf("%w: batch queue threshold must be positive, got %d",
			ErrInvalidInput, c.BatchQueueThreshold)
	}
	return nil
}

// DefaultGateConfig returns conservative call gate defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		RequestsPerMinute:   60,
		Burst:               10,
		MaxConcurrent:       8,
		BatchQueueThreshold: 16,
	}
}

// ChatConfig holds chat turn behaviour flags.
type ChatConfig struct {
	// FallbackEnabled controls behaviour when no passage clears the
	// relevance threshold: true answers from general knowledge with the
	// answer flagged, false returns a fixed not-found message without
	// calling the generation model.
	FallbackEnabled bool

	// HistoryMessages is how many prior thread messages are folded into
	// the generation prompt.
	HistoryMessages int
}

// DefaultChatConfig returns chat defaults.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		FallbackEnabled: false,
		HistoryMessages: 10,
	}
}
