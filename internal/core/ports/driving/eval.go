package driving

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// EvalService manages background evaluation runs.
type EvalService interface {
	// TriggerRun creates a pending run and returns it immediately; the
	// background runner picks it up. An empty question set is generated
	// from the user's corpus at run start.
	TriggerRun(ctx context.Context, req TriggerRequest) (domain.EvalRun, error)

	// RunStatus returns a run with its current progress.
	RunStatus(ctx context.Context, userID, runID string) (domain.EvalRun, domain.EvalProgress, error)

	// CancelRun requests cancellation. Pending runs cancel immediately;
	// running runs drain in-flight questions first. Terminal runs return
	// domain.ErrRunNotCancellable.
	CancelRun(ctx context.Context, userID, runID string) error

	// ListRuns returns the user's runs, newest first.
	ListRuns(ctx context.Context, userID string) ([]domain.EvalRun, error)

	// Results returns a completed or partial run's per-question results.
	Results(ctx context.Context, userID, runID string) ([]domain.EvalResult, error)
}

// TriggerRequest describes a new evaluation run.
type TriggerRequest struct {
	// UserID is the triggering user.
	UserID string

	// Mode selects retrieval-only or generation scoring. Empty defaults
	// to retrieval.
	Mode domain.EvalMode

	// Profiles are the retrieval profiles to sweep. Empty defaults to
	// the live profile.
	Profiles []domain.RetrievalProfile

	// ChunkConfigIDs are the chunk configurations to sweep.
	ChunkConfigIDs []string

	// Questions is an explicit question set. Empty triggers generation.
	Questions []domain.EvalQuestion

	// SampleSize caps generated question sets. Zero uses the default.
	SampleSize int
}
