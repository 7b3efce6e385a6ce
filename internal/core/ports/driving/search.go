package driving

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// SearchService provides direct retrieval without the chat pipeline:
// one hybrid search, fused, no planner and no generation.
type SearchService interface {
	// Search performs a hybrid search over the user's corpus and returns
	// the fused passages with their fusion scores, best first.
	Search(ctx context.Context, userID, query string, opts SearchOptions) ([]domain.Passage, error)
}

// SearchOptions tunes a direct search. Zero values fall back to the
// live retrieval profile.
type SearchOptions struct {
	// TopK caps the number of returned passages.
	TopK int

	// DocumentIDs restricts the search to specific documents.
	DocumentIDs []string
}
