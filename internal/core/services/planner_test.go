package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// strongStore returns rank-1 agreement between both rankers, which
// normalises to relevance 1.0.
func strongStore(passageID string) *mockPassageStore {
	return &mockPassageStore{
		vectorFunc: func(ctx context.Context, _ []float32, k int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: passageID, Score: 0.9}}, nil
		},
		keywordFunc: func(ctx context.Context, _ string, k int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: passageID, Score: 8.1}}, nil
		},
	}
}

// weakStore returns keyword-only hits, which normalise to the keyword
// weight (0.4 under the default profile, below the 0.6 threshold).
func weakStore(passageID string) *mockPassageStore {
	return &mockPassageStore{
		keywordFunc: func(ctx context.Context, _ string, k int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: passageID, Score: 2.0}}, nil
		},
	}
}

func scriptedLLM(classification, decomposition, refinement string) *mockLLM {
	return &mockLLM{
		completeFunc: func(ctx context.Context, req driven.CompletionRequest) (string, error) {
			prompt := req.Messages[len(req.Messages)-1].Content
			switch {
			case strings.Contains(prompt, "Classify the user question"):
				return classification, nil
			case strings.Contains(prompt, "focused search queries"):
				return decomposition, nil
			case strings.Contains(prompt, "Rewrite the query"):
				return refinement, nil
			}
			return "", nil
		},
	}
}

func plannerFor(store *mockPassageStore, llm *mockLLM) *Planner {
	return NewPlanner(NewRetriever(store, llm), llm)
}

// TestPlanner_FactualAboveThreshold tests that a confident factual
// question reaches responding after one search pass
func TestPlanner_FactualAboveThreshold(t *testing.T) {
	llm := scriptedLLM("factual", "", "")
	p := plannerFor(strongStore("p1"), llm)

	var stages []string
	plan, err := p.Plan(context.Background(), "What is the warranty period?",
		domain.SearchFilter{UserID: "u1"}, testProfile(), func(stage string) error {
			stages = append(stages, stage)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, domain.PlanResponding, plan.State)
	assert.Equal(t, domain.QuestionFactual, plan.Type)
	require.Len(t, plan.SubQueries, 1)
	assert.True(t, plan.SubQueries[0].Accepted)
	assert.False(t, plan.SubQueries[0].Refined)
	assert.InDelta(t, 1.0, plan.SubQueries[0].Relevance, 1e-9)
	assert.Equal(t, []string{domain.StageClassifying, domain.StageSearching}, stages)
}

// TestPlanner_ClassifierFailureFallsBack tests heuristic classification
func TestPlanner_ClassifierFailureFallsBack(t *testing.T) {
	llm := &mockLLM{
		completeFunc: func(ctx context.Context, req driven.CompletionRequest) (string, error) {
			return "", &driven.ProviderError{StatusCode: 400, Message: "bad request"}
		},
	}
	p := plannerFor(strongStore("p1"), llm)

	plan, err := p.Plan(context.Background(), "What is the deadline?",
		domain.SearchFilter{UserID: "u1"}, testProfile(), nil)

	require.NoError(t, err)
	assert.Equal(t, domain.QuestionFactual, plan.Type)
	assert.Equal(t, domain.PlanResponding, plan.State)
}

// TestPlanner_HeuristicComparison tests the comparison keyword cue
func TestPlanner_HeuristicComparison(t *testing.T) {
	assert.Equal(t, domain.QuestionComparison, heuristicType("Compare plan A and plan B"))
	assert.Equal(t, domain.QuestionSynthesis, heuristicType("Summarise the findings"))
	assert.Equal(t, domain.QuestionFactual, heuristicType("When does the lease end?"))
}

// TestPlanner_Decomposition tests sub-query generation for comparisons
func TestPlanner_Decomposition(t *testing.T) {
	llm := scriptedLLM("comparison", "1. plan A pricing\n2. plan B pricing\n3. plan A vs plan B features", "")
	p := plannerFor(strongStore("p1"), llm)

	plan, err := p.Plan(context.Background(), "Compare plan A and plan B",
		domain.SearchFilter{UserID: "u1"}, testProfile(), nil)

	require.NoError(t, err)
	require.Len(t, plan.SubQueries, 3)
	assert.Equal(t, "plan A pricing", plan.SubQueries[0].Text)
	assert.Equal(t, "plan B pricing", plan.SubQueries[1].Text)
}

// TestPlanner_DecompositionCapped tests the three sub-query ceiling
func TestPlanner_DecompositionCapped(t *testing.T) {
	llm := scriptedLLM("synthesis", "q1\nq2\nq3\nq4\nq5", "")
	p := plannerFor(strongStore("p1"), llm)

	plan, err := p.Plan(context.Background(), "Summarise everything",
		domain.SearchFilter{UserID: "u1"}, testProfile(), nil)

	require.NoError(t, err)
	assert.Len(t, plan.SubQueries, domain.MaxSubQueries)
}

// TestPlanner_DegenerateDecomposition tests fallback to the original
// question when decomposition yields fewer than two queries
func TestPlanner_DegenerateDecomposition(t *testing.T) {
	llm := scriptedLLM("synthesis", "only one line", "")
	p := plannerFor(strongStore("p1"), llm)

	plan, err := p.Plan(context.Background(), "Summarise the report",
		domain.SearchFilter{UserID: "u1"}, testProfile(), nil)

	require.NoError(t, err)
	require.Len(t, plan.SubQueries, 1)
	assert.Equal(t, "Summarise the report", plan.SubQueries[0].Text)
}

// TestPlanner_RefinesWeakSubQueryOnce tests the single refinement pass
func TestPlanner_RefinesWeakSubQueryOnce(t *testing.T) {
	refineCalls := 0
	llm := &mockLLM{
		completeFunc: func(ctx context.Context, req driven.CompletionRequest) (string, error) {
			prompt := req.Messages[len(req.Messages)-1].Content
			switch {
			case strings.Contains(prompt, "Classify the user question"):
				return "factual", nil
			case strings.Contains(prompt, "Rewrite the query"):
				refineCalls++
				return "rewritten query", nil
			}
			return "", nil
		},
	}
	p := plannerFor(weakStore("p1"), llm)

	var stages []string
	plan, err := p.Plan(context.Background(), "What about the thing?",
		domain.SearchFilter{UserID: "u1"}, testProfile(), func(stage string) error {
			stages = append(stages, stage)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 1, refineCalls)
	require.Len(t, plan.SubQueries, 1)
	assert.True(t, plan.SubQueries[0].Refined)
	assert.Equal(t, "rewritten query", plan.SubQueries[0].Text)
	assert.Equal(t, "What about the thing?", plan.SubQueries[0].OriginalText)
	// Still weak after the refinement: excluded, but the plan completes.
	assert.False(t, plan.SubQueries[0].Accepted)
	assert.Equal(t, domain.PlanResponding, plan.State)
	assert.False(t, plan.FromDocuments())
	assert.Contains(t, stages, domain.StageRefining)
}

// TestPlanner_RefinesOnlyWeakSubQueries tests that strong sub-queries
// are untouched while a weak sibling is refined
func TestPlanner_RefinesOnlyWeakSubQueries(t *testing.T) {
	// "topic b" never gets a vector hit; everything else matches both
	// rankers at rank 1.
	store := &mockPassageStore{
		vectorFunc: func(ctx context.Context, emb []float32, k int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: "hit"}}, nil
		},
		keywordFunc: func(ctx context.Context, query string, k int, _ domain.SearchFilter) (domain.RankedList, error) {
			return domain.RankedList{{PassageID: "hit"}}, nil
		},
	}
	llm := scriptedLLM("comparison", "topic a\ntopic b", "rewritten b")
	llm.embedFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "topic b" {
			return []float32{2}, nil
		}
		return []float32{1}, nil
	}
	store.vectorFunc = func(ctx context.Context, emb []float32, k int, _ domain.SearchFilter) (domain.RankedList, error) {
		if emb[0] == 2 {
			return nil, nil
		}
		return domain.RankedList{{PassageID: "hit"}}, nil
	}

	p := plannerFor(store, llm)
	plan, err := p.Plan(context.Background(), "Compare a and b",
		domain.SearchFilter{UserID: "u1"}, testProfile(), nil)

	require.NoError(t, err)
	require.Len(t, plan.SubQueries, 2)
	assert.False(t, plan.SubQueries[0].Refined)
	assert.True(t, plan.SubQueries[0].Accepted)
	assert.True(t, plan.SubQueries[1].Refined)
	assert.Equal(t, "rewritten b", plan.SubQueries[1].Text)
	assert.True(t, plan.SubQueries[1].Accepted)
}

// TestPlanner_SearchFailureFailsTurn tests that a backend outage fails
// the plan
func TestPlanner_SearchFailureFailsTurn(t *testing.T) {
	boom := errors.New("backend down")
	store := &mockPassageStore{
		vectorFunc: func(ctx context.Context, _ []float32, k int, _ domain.SearchFilter) (domain.RankedList, error) {
			return nil, boom
		},
		keywordFunc: func(ctx context.Context, _ string, k int, _ domain.SearchFilter) (domain.RankedList, error) {
			return nil, boom
		},
	}
	p := plannerFor(store, scriptedLLM("factual", "", ""))

	plan, err := p.Plan(context.Background(), "anything",
		domain.SearchFilter{UserID: "u1"}, testProfile(), nil)

	require.Error(t, err)
	assert.Equal(t, domain.PlanFailed, plan.State)
}

// TestMergeResults tests cross-sub-query merge with budget and dedup
func TestMergeResults(t *testing.T) {
	a := domain.FusedResult{
		{PassageID: "p1", Score: 0.010},
		{PassageID: "p2", Score: 0.008},
	}
	b := domain.FusedResult{
		{PassageID: "p2", Score: 0.012}, // higher score wins the dup
		{PassageID: "p3", Score: 0.006},
	}

	merged := MergeResults([]domain.FusedResult{a, b}, 2)
	require.Len(t, merged, 2)
	assert.Equal(t, "p2", merged[0].PassageID)
	assert.InDelta(t, 0.012, merged[0].Score, 1e-12)
	assert.Equal(t, "p1", merged[1].PassageID)
}

// TestMergeResults_NoBudget tests the uncapped merge
func TestMergeResults_NoBudget(t *testing.T) {
	a := domain.FusedResult{{PassageID: "p1", Score: 0.01}}
	merged := MergeResults([]domain.FusedResult{a}, 0)
	assert.Len(t, merged, 1)
}
