package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// Retriever runs one hybrid search: embed the query through the gated
// provider, query both rankers concurrently and fuse the rankings.
// It is shared by the chat planner, the direct search path and the
// evaluation runner.
type Retriever struct {
	passages driven.PassageStore
	llm      driven.LLMProvider // gated
}

// NewRetriever creates a retriever. The provider must already be gated.
func NewRetriever(passages driven.PassageStore, llm driven.LLMProvider) *Retriever {
	return &Retriever{passages: passages, llm: llm}
}

// Retrieve performs a hybrid search for query and returns the fused
// ranking. One ranker failing degrades to the other with a warning;
// both failing is an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter domain.SearchFilter, profile domain.RetrievalProfile) (domain.FusedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.FusedResult{}, nil
	}

	embedding, err := r.llm.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var (
		wg         sync.WaitGroup
		vectorList domain.RankedList
		vectorErr  error
		kwList     domain.RankedList
		kwErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorList, vectorErr = r.passages.VectorSearch(ctx, embedding, profile.TopK, filter)
	}()
	go func() {
		defer wg.Done()
		kwList, kwErr = r.passages.KeywordSearch(ctx, query, profile.TopK, filter)
	}()
	wg.Wait()

	if vectorErr != nil && kwErr != nil {
		return nil, fmt.Errorf("hybrid search: vector: %v; keyword: %w", vectorErr, kwErr)
	}
	if vectorErr != nil {
		logger.Warn("vector search failed, keyword results only: %v", vectorErr)
		vectorList = nil
	}
	if kwErr != nil {
		logger.Warn("keyword search failed, vector results only: %v", kwErr)
		kwList = nil
	}

	fused := FuseRanked(vectorList, kwList, profile.Fusion)
	logger.Debug("retrieved %d fused passages for %q", len(fused), query)
	return fused, nil
}

// Hydrate resolves a fused ranking into passages with their fusion
// scores attached, preserving order.
func (r *Retriever) Hydrate(ctx context.Context, fused domain.FusedResult) ([]domain.Passage, error) {
	if len(fused) == 0 {
		return []domain.Passage{}, nil
	}
	ids := make([]string, len(fused))
	scores := make(map[string]float64, len(fused))
	for i, entry := range fused {
		ids[i] = entry.PassageID
		scores[entry.PassageID] = entry.Score
	}

	passages, err := r.passages.GetPassages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate passages: %w", err)
	}
	for i := range passages {
		passages[i].Score = scores[passages[i].ID]
	}
	return passages, nil
}
