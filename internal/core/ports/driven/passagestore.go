package driven

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// PassageStore provides passage persistence and the two retrieval
// primitives that feed rank fusion. Both search methods honour the
// filter: only passages from ready documents owned by the filter's
// user are returned, and rank order is positional (index 0 = rank 1).
type PassageStore interface {
	// GetPassages fetches passages by id, preserving the requested order.
	// Unknown ids are skipped.
	GetPassages(ctx context.Context, ids []string) ([]domain.Passage, error)

	// VectorSearch returns the k nearest passages to the query embedding
	// by cosine similarity.
	VectorSearch(ctx context.Context, embedding []float32, k int, filter domain.SearchFilter) (domain.RankedList, error)

	// KeywordSearch returns the k best full-text matches for the query.
	KeywordSearch(ctx context.Context, query string, k int, filter domain.SearchFilter) (domain.RankedList, error)

	// SamplePassages returns up to n passages spread across the user's
	// corpus, used to generate evaluation question sets.
	SamplePassages(ctx context.Context, userID string, n int) ([]domain.Passage, error)

	// Close releases resources.
	Close() error
}
