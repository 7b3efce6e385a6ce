package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFusionConfig_Validate tests valid fusion weights
func TestFusionConfig_Validate(t *testing.T) {
	cfg := FusionConfig{VectorWeight: 0.6, KeywordWeight: 0.4, RRFK: 60}
	assert.NoError(t, cfg.Validate())
}

// TestFusionConfig_Validate_WeightsMustSumToOne tests weight sum enforcement
func TestFusionConfig_Validate_WeightsMustSumToOne(t *testing.T) {
	cfg := FusionConfig{VectorWeight: 0.6, KeywordWeight: 0.5, RRFK: 60}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}

// TestFusionConfig_Validate_NegativeWeight tests rejection of negative weights
func TestFusionConfig_Validate_NegativeWeight(t *testing.T) {
	cfg := FusionConfig{VectorWeight: 1.2, KeywordWeight: -0.2, RRFK: 60}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}

// TestFusionConfig_Validate_RRFK tests that the rank constant must be positive
func TestFusionConfig_Validate_RRFK(t *testing.T) {
	cfg := FusionConfig{VectorWeight: 0.5, KeywordWeight: 0.5, RRFK: 0}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}

// TestFusionConfig_Validate_FloatTolerance tests that near-1.0 sums pass
func TestFusionConfig_Validate_FloatTolerance(t *testing.T) {
	// 0.7 + 0.3 does not sum to exactly 1.0 in float64.
	cfg := FusionConfig{VectorWeight: 0.7, KeywordWeight: 0.3, RRFK: 60}
	assert.NoError(t, cfg.Validate())
}

// TestDefaultRetrievalProfile tests the shipped defaults
func TestDefaultRetrievalProfile(t *testing.T) {
	p := DefaultRetrievalProfile()

	assert.NoError(t, p.Validate())
	assert.Equal(t, 0.6, p.Fusion.VectorWeight)
	assert.Equal(t, 0.4, p.Fusion.KeywordWeight)
	assert.Equal(t, 60, p.Fusion.RRFK)
	assert.Equal(t, 0.6, p.RelevanceThreshold)
	assert.Greater(t, p.TopK, 0)
	assert.Greater(t, p.ContextPassages, 0)
}

// TestRetrievalProfile_Validate_Threshold tests threshold bounds
func TestRetrievalProfile_Validate_Threshold(t *testing.T) {
	p := DefaultRetrievalProfile()
	p.RelevanceThreshold = 1.5
	assert.ErrorIs(t, p.Validate(), ErrInvalidInput)

	p.RelevanceThreshold = -0.1
	assert.ErrorIs(t, p.Validate(), ErrInvalidInput)
}

// TestRetrievalProfile_Validate_TopK tests top-k bounds
func TestRetrievalProfile_Validate_TopK(t *testing.T) {
	p := DefaultRetrievalProfile()
	p.TopK = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidInput)
}

// TestGateConfig_Defaults tests gate defaults are valid
func TestGateConfig_Defaults(t *testing.T) {
	cfg := DefaultGateConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 60, cfg.RequestsPerMinute)
	assert.Equal(t, 10, cfg.Burst)
}

// TestGateConfig_Validate tests gate validation failures
func TestGateConfig_Validate(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.RequestsPerMinute = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)

	cfg = DefaultGateConfig()
	cfg.MaxConcurrent = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}

// TestChatConfig_Defaults tests chat defaults
func TestChatConfig_Defaults(t *testing.T) {
	cfg := DefaultChatConfig()
	assert.False(t, cfg.FallbackEnabled)
	assert.Equal(t, 10, cfg.HistoryMessages)
}
