package services

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService is the search-without-chat path: one hybrid search,
// fused and hydrated, no planner and no generation.
type SearchService struct {
	retriever *Retriever
	config    driven.ConfigStore
}

// NewSearchService creates a search service.
func NewSearchService(retriever *Retriever, config driven.ConfigStore) *SearchService {
	return &SearchService{retriever: retriever, config: config}
}

// Search performs a hybrid search over the user's corpus.
func (s *SearchService) Search(ctx context.Context, userID, query string, opts driving.SearchOptions) ([]domain.Passage, error) {
	logger.Section("Direct Search")
	logger.Debug("user=%s query=%q", userID, query)

	profile := s.config.Profile()
	topK := opts.TopK
	if topK <= 0 {
		topK = profile.TopK
	}

	filter := domain.SearchFilter{UserID: userID, DocumentIDs: opts.DocumentIDs}
	fused, err := s.retriever.Retrieve(ctx, query, filter, profile)
	if err != nil {
		return nil, err
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return s.retriever.Hydrate(ctx, fused)
}
