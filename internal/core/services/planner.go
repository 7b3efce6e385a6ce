package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

const classifyPrompt = `Classify the user question into exactly one category:
- factual: asks for a specific fact or detail answerable by one search
- synthesis: asks to summarise or combine information across topics
- comparison: asks to compare two or more subjects

Reply with the single category word and nothing else.

Question: %s`

const decomposePrompt = `Break the user question into 2 or 3 focused search queries that
together cover what it asks. Reply with one query per line and nothing else.

Question: %s`

const refinePrompt = `A document search for the query below returned poorly matching
results. Rewrite the query to improve retrieval: use alternative phrasing and
concrete terms from the original question. Reply with the rewritten query only.

Original question: %s
Search query: %s`

// StageFunc receives planner stage transitions so callers can stream
// status events. A non-nil return aborts the plan.
type StageFunc func(stage string) error

// Planner drives the per-turn retrieval state machine: classify the
// question, search (decomposed for complex questions), evaluate
// relevance, refine each weak sub-query at most once, then hand the
// accepted results to the responder.
type Planner struct {
	retriever *Retriever
	llm       driven.LLMProvider // gated
}

// NewPlanner creates a planner. The provider must already be gated.
func NewPlanner(retriever *Retriever, llm driven.LLMProvider) *Planner {
	return &Planner{retriever: retriever, llm: llm}
}

// Plan runs the state machine for one question. onStage may be nil.
// The returned plan is in state responding on success; any error leaves
// the plan failed and discards partial work.
func (p *Planner) Plan(ctx context.Context, question string, filter domain.SearchFilter, profile domain.RetrievalProfile, onStage StageFunc) (*domain.QueryPlan, error) {
	plan := &domain.QueryPlan{Question: question, State: domain.PlanClassifying}

	if err := notifyStage(onStage, domain.StageClassifying); err != nil {
		plan.State = domain.PlanFailed
		return plan, err
	}
	plan.Type = p.classify(ctx, question)
	logger.Debug("classified question as %s", plan.Type)

	queries, err := p.subQueries(ctx, question, plan.Type)
	if err != nil {
		plan.State = domain.PlanFailed
		return plan, err
	}
	for _, q := range queries {
		plan.SubQueries = append(plan.SubQueries, domain.SubQuery{Text: q, OriginalText: q})
	}

	plan.State = domain.PlanSearching
	if err := notifyStage(onStage, domain.StageSearching); err != nil {
		plan.State = domain.PlanFailed
		return plan, err
	}
	if err := p.searchAll(ctx, plan, filter, profile, nil); err != nil {
		plan.State = domain.PlanFailed
		return plan, err
	}

	plan.State = domain.PlanEvaluating
	var weak []int
	for i := range plan.SubQueries {
		sq := &plan.SubQueries[i]
		sq.Relevance = Relevance(sq.Result, profile.Fusion)
		sq.Accepted = sq.Relevance >= profile.RelevanceThreshold
		logger.Debug("sub-query %q relevance %.3f (accepted=%t)", sq.Text, sq.Relevance, sq.Accepted)
		if !sq.Accepted {
			weak = append(weak, i)
		}
	}

	if len(weak) > 0 {
		plan.State = domain.PlanRefining
		if err := notifyStage(onStage, domain.StageRefining); err != nil {
			plan.State = domain.PlanFailed
			return plan, err
		}
		if err := p.refine(ctx, plan, weak, filter, profile); err != nil {
			plan.State = domain.PlanFailed
			return plan, err
		}
	}

	plan.State = domain.PlanResponding
	return plan, nil
}

// classify determines the question type with one LLM call, falling
// back to keyword heuristics when the call fails or returns noise.
// Classification failure never aborts the turn.
func (p *Planner) classify(ctx context.Context, question string) domain.QuestionType {
	out, err := p.llm.Complete(ctx, driven.CompletionRequest{
		Messages: []driven.ChatMessage{
			{Role: "user", Content: fmt.Sprintf(classifyPrompt, question)},
		},
		MaxTokens:   8,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("classification call failed, using heuristic: %v", err)
		return heuristicType(question)
	}

	t := domain.QuestionType(strings.ToLower(strings.TrimSpace(out)))
	if !t.Valid() {
		logger.Debug("unusable classification %q, using heuristic", out)
		return heuristicType(question)
	}
	return t
}

// heuristicType is the zero-cost classifier fallback.
func heuristicType(question string) domain.QuestionType {
	q := strings.ToLower(question)
	for _, cue := range []string{"compare", " versus ", " vs ", "difference between"} {
		if strings.Contains(q, cue) {
			return domain.QuestionComparison
		}
	}
	for _, cue := range []string{"summar", "overview", "overall", "synthes", "across"} {
		if strings.Contains(q, cue) {
			return domain.QuestionSynthesis
		}
	}
	return domain.QuestionFactual
}

// subQueries produces the search units for the question: the question
// itself for factual, an LLM decomposition capped at MaxSubQueries for
// the rest. A failed or degenerate decomposition falls back to the
// single original question rather than aborting.
func (p *Planner) subQueries(ctx context.Context, question string, t domain.QuestionType) ([]string, error) {
	if t == domain.QuestionFactual {
		return []string{question}, nil
	}

	out, err := p.llm.Complete(ctx, driven.CompletionRequest{
		Messages: []driven.ChatMessage{
			{Role: "user", Content: fmt.Sprintf(decomposePrompt, question)},
		},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("decomposition call failed, searching original question: %v", err)
		return []string{question}, nil
	}

	queries := parseQueryLines(out)
	if len(queries) < 2 {
		logger.Debug("decomposition produced %d queries, searching original question", len(queries))
		return []string{question}, nil
	}
	if len(queries) > domain.MaxSubQueries {
		queries = queries[:domain.MaxSubQueries]
	}
	return queries, nil
}

// parseQueryLines extracts non-empty lines, stripping list markers.
func parseQueryLines(out string) []string {
	var queries []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		if line != "" {
			queries = append(queries, line)
		}
	}
	return queries
}

// searchAll retrieves every sub-query concurrently and joins before
// returning. only restricts the pass to the given indices (nil = all).
// Any search failure fails the whole pass.
func (p *Planner) searchAll(ctx context.Context, plan *domain.QueryPlan, filter domain.SearchFilter, profile domain.RetrievalProfile, only []int) error {
	indices := only
	if indices == nil {
		indices = make([]int, len(plan.SubQueries))
		for i := range indices {
			indices[i] = i
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(indices))
	for n, idx := range indices {
		wg.Add(1)
		go func(n, idx int) {
			defer wg.Done()
			sq := &plan.SubQueries[idx]
			result, err := p.retriever.Retrieve(ctx, sq.Text, filter, profile)
			if err != nil {
				errs[n] = fmt.Errorf("search %q: %w", sq.Text, err)
				return
			}
			sq.Result = result
		}(n, idx)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// refine rewrites each weak sub-query once, re-searches it and accepts
// whatever relevance results. A failed rewrite call keeps the original
// verdict for that sub-query.
func (p *Planner) refine(ctx context.Context, plan *domain.QueryPlan, weak []int, filter domain.SearchFilter, profile domain.RetrievalProfile) error {
	var rerun []int
	for _, idx := range weak {
		sq := &plan.SubQueries[idx]
		out, err := p.llm.Complete(ctx, driven.CompletionRequest{
			Messages: []driven.ChatMessage{
				{Role: "user", Content: fmt.Sprintf(refinePrompt, plan.Question, sq.Text)},
			},
			MaxTokens:   64,
			Temperature: 0,
		})
		if err != nil {
			logger.Warn("refinement call failed for %q: %v", sq.Text, err)
			continue
		}
		refined := strings.TrimSpace(out)
		if refined == "" || refined == sq.Text {
			continue
		}
		sq.Text = refined
		sq.Refined = true
		rerun = append(rerun, idx)
	}

	if len(rerun) == 0 {
		return nil
	}
	if err := p.searchAll(ctx, plan, filter, profile, rerun); err != nil {
		return err
	}
	for _, idx := range rerun {
		sq := &plan.SubQueries[idx]
		sq.Relevance = Relevance(sq.Result, profile.Fusion)
		sq.Accepted = sq.Relevance >= profile.RelevanceThreshold
		logger.Debug("refined sub-query %q relevance %.3f (accepted=%t)", sq.Text, sq.Relevance, sq.Accepted)
	}
	return nil
}

// MergeResults flattens accepted fused results into one ranking under
// a passage budget. A passage reached by several sub-queries keeps its
// highest fused score.
func MergeResults(results []domain.FusedResult, budget int) domain.FusedResult {
	best := make(map[string]float64)
	for _, result := range results {
		for _, entry := range result {
			if s, ok := best[entry.PassageID]; !ok || entry.Score > s {
				best[entry.PassageID] = entry.Score
			}
		}
	}

	merged := make(domain.FusedResult, 0, len(best))
	for id, score := range best {
		merged = append(merged, domain.FusedEntry{PassageID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].PassageID < merged[j].PassageID
	})

	if budget > 0 && len(merged) > budget {
		merged = merged[:budget]
	}
	return merged
}

// notifyStage invokes the stage callback when set.
func notifyStage(onStage StageFunc, stage string) error {
	if onStage == nil {
		return nil
	}
	return onStage(stage)
}
