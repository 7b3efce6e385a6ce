package domain

import "time"

// EvalStatus is the lifecycle state of an evaluation run.
type EvalStatus string

const (
	// EvalPending means the run is queued and unclaimed.
	EvalPending EvalStatus = "pending"
	// EvalRunning means a worker claimed the run and is executing it.
	EvalRunning EvalStatus = "running"
	// EvalCancelling means cancellation was requested; the worker drains
	// in-flight questions and writes a final checkpoint.
	EvalCancelling EvalStatus = "cancelling"
	// EvalCompleted is the success terminal state.
	EvalCompleted EvalStatus = "completed"
	// EvalFailed is the systemic-failure terminal state.
	EvalFailed EvalStatus = "failed"
	// EvalCancelled is the cancellation terminal state. Completed results
	// are retained.
	EvalCancelled EvalStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s EvalStatus) Terminal() bool {
	switch s {
	case EvalCompleted, EvalFailed, EvalCancelled:
		return true
	}
	return false
}

// EvalMode selects how much of the pipeline a run exercises.
type EvalMode string

const (
	// EvalModeRetrieval scores retrieval only (hit rate, MRR, precision).
	EvalModeRetrieval EvalMode = "retrieval"
	// EvalModeGeneration additionally generates answers and judges them.
	EvalModeGeneration EvalMode = "generation"
)

// EvalQuestion is one test case within a run's question set.
type EvalQuestion struct {
	// ID is stable within the run; checkpoints reference it.
	ID string

	// Text is the question to put through the planner.
	Text string

	// ExpectedAnswer optionally enables correctness judging.
	ExpectedAnswer string

	// SourceDocumentID is the document the question was generated from,
	// used for retrieval hit scoring.
	SourceDocumentID string
}

// EvalRun is the persistent record of one background evaluation.
// Created on trigger, mutated only by the claiming runner, terminal
// once completed, failed or cancelled.
type EvalRun struct {
	// ID is the run identifier.
	ID string

	// UserID is the triggering user; searches are scoped to their corpus.
	UserID string

	// Status is the lifecycle state.
	Status EvalStatus

	// Mode selects retrieval-only or generation scoring.
	Mode EvalMode

	// Profiles are the retrieval profiles under test, snapshotted at
	// trigger time so later config edits cannot skew a running sweep.
	Profiles []RetrievalProfile

	// ChunkConfigIDs are the chunk configurations under test. An empty
	// list means the corpus default.
	ChunkConfigIDs []string

	// Questions is the question set. May be generated at run start when
	// the trigger supplied none.
	Questions []EvalQuestion

	// SampleSize caps generated question sets.
	SampleSize int

	// Error holds the systemic failure message for failed runs.
	Error string

	// CreatedAt is when the run was triggered.
	CreatedAt time.Time

	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// ConfigPairs returns the number of (profile, chunk config) combinations
// the run sweeps over.
func (r *EvalRun) ConfigPairs() int {
	chunks := len(r.ChunkConfigIDs)
	if chunks == 0 {
		chunks = 1
	}
	return len(r.Profiles) * chunks
}

// EvalCheckpoint is a resumption point persisted periodically during a
// run. Each checkpoint supersedes the prior one for the same run; the
// completed question ids are always a subset of the run's question set.
type EvalCheckpoint struct {
	// RunID links to the owning run.
	RunID string

	// ConfigIndex is the (profile, chunk config) pair being executed.
	ConfigIndex int

	// CompletedQuestionIDs are the question ids finished within the
	// current configuration pair.
	CompletedQuestionIDs []string

	// Phase names the runner phase, for operator visibility.
	Phase string

	// WrittenAt is when the checkpoint was persisted.
	WrittenAt time.Time
}

// EvalResult is the persisted outcome of one (question, configuration)
// pair. A failed question records Err and zero metrics; it does not
// abort the run.
type EvalResult struct {
	// RunID links to the owning run.
	RunID string

	// QuestionID identifies the question.
	QuestionID string

	// ProfileID and ChunkConfigID identify the configuration pair.
	ProfileID     string
	ChunkConfigID string

	// Hit reports whether the source document appeared in the results.
	Hit bool

	// ReciprocalRank is 1/rank of the source document, 0 on miss.
	ReciprocalRank float64

	// ContextPrecision is the share of top results from the source document.
	ContextPrecision float64

	// Faithfulness, AnswerRelevancy and AnswerCorrectness are LLM-judge
	// scores in [0,1]; negative when not computed (retrieval-only mode
	// or no expected answer).
	Faithfulness      float64
	AnswerRelevancy   float64
	AnswerCorrectness float64

	// LatencyMS is the wall time for this question.
	LatencyMS float64

	// Err records a per-question failure.
	Err string

	// CreatedAt is when the result was persisted.
	CreatedAt time.Time
}

// EvalProgress summarises a run for status queries.
type EvalProgress struct {
	// Completed is the number of (question, configuration) pairs done.
	Completed int

	// Total is the number of pairs the run will execute.
	Total int

	// Failed counts per-question failures recorded so far.
	Failed int
}
