package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaceGrim/ruhroh/internal/adapters/driven/storage/memory"
	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// TestSearchService_Search tests the direct path: hybrid search, fusion
// and hydration with scores attached
func TestSearchService_Search(t *testing.T) {
	store := &mockPassageStore{
		vectorFunc: func(ctx context.Context, _ []float32, _ int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: "p1", Score: 0.9}, {PassageID: "p2", Score: 0.7}}, nil
		},
		keywordFunc: func(ctx context.Context, _ string, _ int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: "p2", Score: 5.0}, {PassageID: "p3", Score: 2.0}}, nil
		},
	}
	svc := NewSearchService(NewRetriever(store, &mockLLM{}), memory.NewConfigStore())

	passages, err := svc.Search(context.Background(), "u1", "alpha", driving.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, passages, 3)

	// p2 appears in both rankings and must lead.
	assert.Equal(t, "p2", passages[0].ID)
	assert.Greater(t, passages[0].Score, passages[1].Score)
}

// TestSearchService_Search_TopK tests result truncation
func TestSearchService_Search_TopK(t *testing.T) {
	store := &mockPassageStore{
		vectorFunc: func(ctx context.Context, _ []float32, _ int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{
				{PassageID: "p1", Score: 0.9},
				{PassageID: "p2", Score: 0.8},
				{PassageID: "p3", Score: 0.7},
			}, nil
		},
	}
	svc := NewSearchService(NewRetriever(store, &mockLLM{}), memory.NewConfigStore())

	passages, err := svc.Search(context.Background(), "u1", "alpha", driving.SearchOptions{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, passages, 2)
}

// TestSearchService_Search_DocumentFilter tests that the document scope
// reaches both rankers
func TestSearchService_Search_DocumentFilter(t *testing.T) {
	var gotFilter domain.SearchFilter
	store := &mockPassageStore{
		vectorFunc: func(ctx context.Context, _ []float32, _ int, filter domain.SearchFilter) (domain.RankedList, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	svc := NewSearchService(NewRetriever(store, &mockLLM{}), memory.NewConfigStore())

	_, err := svc.Search(context.Background(), "u1", "alpha", driving.SearchOptions{DocumentIDs: []string{"d1"}})
	require.NoError(t, err)
	assert.Equal(t, "u1", gotFilter.UserID)
	assert.Equal(t, []string{"d1"}, gotFilter.DocumentIDs)
}

// TestSearchService_Search_EmptyQuery tests the blank-query result
func TestSearchService_Search_EmptyQuery(t *testing.T) {
	svc := NewSearchService(NewRetriever(&mockPassageStore{}, &mockLLM{}), memory.NewConfigStore())

	passages, err := svc.Search(context.Background(), "u1", "  ", driving.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, passages)
}

// TestRetriever_SingleRankerDegradation tests that one failing ranker
// degrades instead of failing the search
func TestRetriever_SingleRankerDegradation(t *testing.T) {
	store := &mockPassageStore{
		vectorFunc: func(ctx context.Context, _ []float32, _ int, _ domain.SearchFilter) (domain.RankedList, error) {
			return nil, errors.New("index offline")
		},
		keywordFunc: func(ctx context.Context, _ string, _ int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: "p1", Score: 3.0}}, nil
		},
	}
	retriever := NewRetriever(store, &mockLLM{})

	fused, err := retriever.Retrieve(context.Background(), "alpha", domain.SearchFilter{}, testProfile())
	require.NoError(t, err)
	require.Len(t, fused, 1)
	assert.Equal(t, "p1", fused[0].PassageID)
}

// TestRetriever_BothRankersFail tests the error when nothing can search
func TestRetriever_BothRankersFail(t *testing.T) {
	store := &mockPassageStore{
		vectorFunc: func(ctx context.Context, _ []float32, _ int, _ domain.SearchFilter) (domain.RankedList, error) {
			return nil, errors.New("index offline")
		},
		keywordFunc: func(ctx context.Context, _ string, _ int, _ domain.SearchFilter) (domain.RankedList, error) {
			return nil, errors.New("fts offline")
		},
	}
	retriever := NewRetriever(store, &mockLLM{})

	_, err := retriever.Retrieve(context.Background(), "alpha", domain.SearchFilter{}, testProfile())
	require.Error(t, err)
}

// TestRetriever_Hydrate tests order preservation and score attachment
func TestRetriever_Hydrate(t *testing.T) {
	retriever := NewRetriever(&mockPassageStore{}, &mockLLM{})

	passages, err := retriever.Hydrate(context.Background(), domain.FusedResult{
		{PassageID: "p2", Score: 0.5},
		{PassageID: "p1", Score: 0.3},
	})
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "p2", passages[0].ID)
	assert.InDelta(t, 0.5, passages[0].Score, 1e-12)
	assert.InDelta(t, 0.3, passages[1].Score, 1e-12)
}
