package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// defaultSampleSize caps generated question sets when the trigger does
// not say otherwise.
const defaultSampleSize = 20

// Ensure EvalService implements the interface.
var _ driving.EvalService = (*EvalService)(nil)

// EvalService is the front door for evaluation runs: triggering is
// asynchronous, execution belongs to the EvalRunner.
type EvalService struct {
	store  driven.EvalStore
	config driven.ConfigStore
}

// NewEvalService creates an eval service.
func NewEvalService(store driven.EvalStore, config driven.ConfigStore) *EvalService {
	return &EvalService{store: store, config: config}
}

// TriggerRun creates a pending run. Profiles are snapshotted into the
// run record so later configuration edits cannot skew a running sweep.
func (s *EvalService) TriggerRun(ctx context.Context, req driving.TriggerRequest) (domain.EvalRun, error) {
	if req.UserID == "" {
		return domain.EvalRun{}, fmt.Errorf("%w: missing user", domain.ErrInvalidInput)
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.EvalModeRetrieval
	}
	if mode != domain.EvalModeRetrieval && mode != domain.EvalModeGeneration {
		return domain.EvalRun{}, fmt.Errorf("%w: unknown eval mode %q", domain.ErrInvalidInput, mode)
	}

	profiles := req.Profiles
	if len(profiles) == 0 {
		profiles = []domain.RetrievalProfile{s.config.Profile()}
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return domain.EvalRun{}, fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}

	sampleSize := req.SampleSize
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	questions := make([]domain.EvalQuestion, len(req.Questions))
	copy(questions, req.Questions)
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.NewString()
		}
	}

	run := domain.EvalRun{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Status:         domain.EvalPending,
		Mode:           mode,
		Profiles:       profiles,
		ChunkConfigIDs: req.ChunkConfigIDs,
		Questions:      questions,
		SampleSize:     sampleSize,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return domain.EvalRun{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// RunStatus returns a run with its progress.
func (s *EvalService) RunStatus(ctx context.Context, userID, runID string) (domain.EvalRun, domain.EvalProgress, error) {
	run, err := s.owned(ctx, userID, runID)
	if err != nil {
		return domain.EvalRun{}, domain.EvalProgress{}, err
	}
	progress, err := s.store.Progress(ctx, runID)
	if err != nil {
		return domain.EvalRun{}, domain.EvalProgress{}, err
	}
	return run, progress, nil
}

// CancelRun requests cancellation of a pending or running run.
func (s *EvalService) CancelRun(ctx context.Context, userID, runID string) error {
	if _, err := s.owned(ctx, userID, runID); err != nil {
		return err
	}
	return s.store.RequestCancel(ctx, runID)
}

// ListRuns returns the user's runs, newest first.
func (s *EvalService) ListRuns(ctx context.Context, userID string) ([]domain.EvalRun, error) {
	return s.store.ListRuns(ctx, userID)
}

// Results returns a run's per-question results.
func (s *EvalService) Results(ctx context.Context, userID, runID string) ([]domain.EvalResult, error) {
	if _, err := s.owned(ctx, userID, runID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, runID)
}

func (s *EvalService) owned(ctx context.Context, userID, runID string) (domain.EvalRun, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return domain.EvalRun{}, err
	}
	if run.UserID != userID {
		return domain.EvalRun{}, fmt.Errorf("run %s: %w", runID, domain.ErrNotFound)
	}
	return run, nil
}
