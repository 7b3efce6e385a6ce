package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestQuestionType_Valid tests known and unknown question types
func TestQuestionType_Valid(t *testing.T) {
	assert.True(t, QuestionFactual.Valid())
	assert.True(t, QuestionSynthesis.Valid())
	assert.True(t, QuestionComparison.Valid())
	assert.False(t, QuestionType("opinion").Valid())
	assert.False(t, QuestionType("").Valid())
}

// TestQueryPlan_AcceptedResults tests filtering to accepted sub-queries
func TestQueryPlan_AcceptedResults(t *testing.T) {
	plan := QueryPlan{
		Question: "compare A and B",
		Type:     QuestionComparison,
		SubQueries: []SubQuery{
			{Text: "A", Accepted: true, Result: FusedResult{{PassageID: "p1", Score: 0.9}}},
			{Text: "B", Accepted: false, Result: FusedResult{{PassageID: "p2", Score: 0.1}}},
			{Text: "A vs B", Accepted: true, Result: FusedResult{{PassageID: "p3", Score: 0.7}}},
		},
	}

	results := plan.AcceptedResults()
	assert.Len(t, results, 2)
	assert.Equal(t, "p1", results[0][0].PassageID)
	assert.Equal(t, "p3", results[1][0].PassageID)
}

// TestQueryPlan_FromDocuments tests the grounding verdict
func TestQueryPlan_FromDocuments(t *testing.T) {
	plan := QueryPlan{
		SubQueries: []SubQuery{
			{Accepted: false},
			{Accepted: false},
		},
	}
	assert.False(t, plan.FromDocuments())

	plan.SubQueries[1].Accepted = true
	assert.True(t, plan.FromDocuments())
}

// TestQueryPlan_FromDocuments_NoSubQueries tests the empty plan
func TestQueryPlan_FromDocuments_NoSubQueries(t *testing.T) {
	plan := QueryPlan{Question: "anything"}
	assert.False(t, plan.FromDocuments())
	assert.Empty(t, plan.AcceptedResults())
}
