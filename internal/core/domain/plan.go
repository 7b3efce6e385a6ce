package domain

// QuestionType classifies a user question for the query planner.
type QuestionType string

const (
	// QuestionFactual needs a single direct search.
	QuestionFactual QuestionType = "factual"
	// QuestionSynthesis needs decomposition into complementary sub-queries.
	QuestionSynthesis QuestionType = "synthesis"
	// QuestionComparison needs decomposition into per-subject sub-queries.
	QuestionComparison QuestionType = "comparison"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionFactual, QuestionSynthesis, QuestionComparison:
		return true
	}
	return false
}

// PlanState is a state of the query planner's per-turn state machine.
type PlanState string

const (
	// PlanClassifying determines the question type.
	PlanClassifying PlanState = "classifying"
	// PlanSearching runs the search(es) for the current sub-queries.
	PlanSearching PlanState = "searching"
	// PlanEvaluating checks relevance of each fused result.
	PlanEvaluating PlanState = "evaluating"
	// PlanRefining rewrites a low-relevance sub-query.
	PlanRefining PlanState = "refining"
	// PlanResponding assembles context and generates the answer.
	PlanResponding PlanState = "responding"
	// PlanFailed is the terminal failure state.
	PlanFailed PlanState = "failed"
)

// MaxSubQueries bounds decomposition: a plan never issues more than
// three sub-queries for one question.
const MaxSubQueries = 3

// SubQuery is one decomposed search unit within a QueryPlan.
type SubQuery struct {
	// Text is the query text currently in effect (refined text after a
	// refinement pass).
	Text string

	// OriginalText preserves the pre-refinement text.
	OriginalText string

	// Refined records whether the single permitted refinement was used.
	Refined bool

	// Result is the fused ranking for this sub-query.
	Result FusedResult

	// Relevance is the normalised relevance signal of Result.
	Relevance float64

	// Accepted records the relevance verdict after evaluation (and after
	// the at-most-one refinement attempt).
	Accepted bool
}

// QueryPlan holds the transient state of one user turn through the
// planner. It lives for the duration of the turn and is never persisted.
type QueryPlan struct {
	// Question is the original user question.
	Question string

	// Type is the classification outcome.
	Type QuestionType

	// SubQueries are the searches issued for this plan. A factual
	// question has exactly one entry holding the question itself.
	SubQueries []SubQuery

	// State is the current planner state.
	State PlanState
}

// AcceptedResults returns the fused results of accepted sub-queries,
// in sub-query order.
func (p *QueryPlan) AcceptedResults() []FusedResult {
	results := make([]FusedResult, 0, len(p.SubQueries))
	for i := range p.SubQueries {
		if p.SubQueries[i].Accepted {
			results = append(results, p.SubQueries[i].Result)
		}
	}
	return results
}

// FromDocuments reports whether any sub-query cleared the relevance
// threshold. Sub-queries still below threshold after their single
// refinement are excluded individually; the turn counts as grounded in
// documents if at least one sub-query qualifies.
func (p *QueryPlan) FromDocuments() bool {
	for i := range p.SubQueries {
		if p.SubQueries[i].Accepted {
			return true
		}
	}
	return false
}
