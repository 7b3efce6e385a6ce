package driven

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// EvalStore provides evaluation run persistence. A run's row is the
// coordination point between the trigger, the background runner and
// cancellation requests, so the claim and cancel operations must be
// atomic at the storage layer.
type EvalStore interface {
	// CreateRun persists a new run in the pending state.
	CreateRun(ctx context.Context, run domain.EvalRun) error

	// GetRun fetches a run by id.
	GetRun(ctx context.Context, id string) (domain.EvalRun, error)

	// ListRuns returns the user's runs, newest first.
	ListRuns(ctx context.Context, userID string) ([]domain.EvalRun, error)

	// NextPending returns the oldest pending run, or domain.ErrNotFound
	// when no run is waiting.
	NextPending(ctx context.Context) (domain.EvalRun, error)

	// SetQuestions replaces a run's question set. Used once at run start
	// when the trigger supplied no questions.
	SetQuestions(ctx context.Context, id string, questions []domain.EvalQuestion) error

	// ClaimRun atomically moves a pending run to running. It returns
	// domain.ErrRunClaimed when the run is no longer pending, so at most
	// one worker ever executes a run.
	ClaimRun(ctx context.Context, id string) error

	// RequestCancel atomically moves a pending or running run to
	// cancelling (a pending run goes straight to cancelled). It returns
	// domain.ErrRunNotCancellable for terminal runs.
	RequestCancel(ctx context.Context, id string) error

	// SetStatus moves a run to the given status, recording the error
	// message for failed runs.
	SetStatus(ctx context.Context, id string, status domain.EvalStatus, errMsg string) error

	// RequeueRunning moves running runs back to pending and cancelling
	// runs to cancelled. Called once at worker startup to recover runs
	// orphaned by a crash; safe only while no other worker is executing.
	RequeueRunning(ctx context.Context) (int, error)

	// SaveCheckpoint persists a checkpoint, replacing any prior
	// checkpoint for the run.
	SaveCheckpoint(ctx context.Context, cp domain.EvalCheckpoint) error

	// GetCheckpoint fetches the run's latest checkpoint.
	// Returns domain.ErrNotFound when the run has never checkpointed.
	GetCheckpoint(ctx context.Context, runID string) (domain.EvalCheckpoint, error)

	// SaveResult persists one question result.
	SaveResult(ctx context.Context, result domain.EvalResult) error

	// ListResults returns a run's results in insertion order.
	ListResults(ctx context.Context, runID string) ([]domain.EvalResult, error)

	// Progress summarises a run's completed, failed and total counts.
	Progress(ctx context.Context, runID string) (domain.EvalProgress, error)
}
