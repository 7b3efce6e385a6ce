package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// Ensure EvalStore implements the interface.
var _ driven.EvalStore = (*EvalStore)(nil)

// EvalStore is an in-memory implementation of driven.EvalStore.
// Status transitions are serialised under one mutex, which gives the
// same claim atomicity the SQLite adapter gets from UPDATE ... WHERE.
type EvalStore struct {
	mu          sync.RWMutex
	runs        map[string]domain.EvalRun
	checkpoints map[string]domain.EvalCheckpoint
	results     map[string][]domain.EvalResult
}

// NewEvalStore creates an empty in-memory eval store.
func NewEvalStore() *EvalStore {
	return &EvalStore{
		runs:        make(map[string]domain.EvalRun),
		checkpoints: make(map[string]domain.EvalCheckpoint),
		results:     make(map[string][]domain.EvalResult),
	}
}

// CreateRun persists a new run.
func (s *EvalStore) CreateRun(_ context.Context, run domain.EvalRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by id.
func (s *EvalStore) GetRun(_ context.Context, id string) (domain.EvalRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.EvalRun{}, domain.ErrNotFound
	}
	return run, nil
}

// ListRuns returns the user's runs, newest first.
func (s *EvalStore) ListRuns(_ context.Context, userID string) ([]domain.EvalRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var runs []domain.EvalRun
	for _, run := range s.runs {
		if run.UserID == userID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// NextPending returns the oldest pending run.
func (s *EvalStore) NextPending(_ context.Context) (domain.EvalRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest *domain.EvalRun
	for id := range s.runs {
		run := s.runs[id]
		if run.Status != domain.EvalPending {
			continue
		}
		if oldest == nil || run.CreatedAt.Before(oldest.CreatedAt) {
			oldest = &run
		}
	}
	if oldest == nil {
		return domain.EvalRun{}, domain.ErrNotFound
	}
	return *oldest, nil
}

// SetQuestions replaces a run's question set.
func (s *EvalStore) SetQuestions(_ context.Context, id string, questions []domain.EvalQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	run.Questions = questions
	s.runs[id] = run
	return nil
}

// ClaimRun atomically moves a pending run to running.
func (s *EvalStore) ClaimRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if run.Status != domain.EvalPending {
		return domain.ErrRunClaimed
	}
	run.Status = domain.EvalRunning
	s.runs[id] = run
	return nil
}

// RequestCancel moves a pending run to cancelled and a running run to
// cancelling.
func (s *EvalStore) RequestCancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch run.Status {
	case domain.EvalPending:
		run.Status = domain.EvalCancelled
		run.CompletedAt = time.Now().UTC()
	case domain.EvalRunning:
		run.Status = domain.EvalCancelling
	case domain.EvalCancelling:
		// Already draining.
	default:
		return domain.ErrRunNotCancellable
	}
	s.runs[id] = run
	return nil
}

// SetStatus moves a run to the given status.
func (s *EvalStore) SetStatus(_ context.Context, id string, status domain.EvalStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	run.Status = status
	run.Error = errMsg
	if status.Terminal() {
		run.CompletedAt = time.Now().UTC()
	}
	s.runs[id] = run
	return nil
}

// RequeueRunning recovers orphaned runs after a crash.
func (s *EvalStore) RequeueRunning(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, run := range s.runs {
		switch run.Status {
		case domain.EvalRunning:
			run.Status = domain.EvalPending
		case domain.EvalCancelling:
			run.Status = domain.EvalCancelled
			run.CompletedAt = time.Now().UTC()
		default:
			continue
		}
		s.runs[id] = run
		n++
	}
	return n, nil
}

// SaveCheckpoint replaces the run's checkpoint.
func (s *EvalStore) SaveCheckpoint(_ context.Context, cp domain.EvalCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[cp.RunID]; !ok {
		return domain.ErrNotFound
	}
	s.checkpoints[cp.RunID] = cp
	return nil
}

// GetCheckpoint fetches the run's latest checkpoint.
func (s *EvalStore) GetCheckpoint(_ context.Context, runID string) (domain.EvalCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[runID]
	if !ok {
		return domain.EvalCheckpoint{}, domain.ErrNotFound
	}
	return cp, nil
}

// SaveResult persists one question result.
func (s *EvalStore) SaveResult(_ context.Context, result domain.EvalResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[result.RunID]; !ok {
		return domain.ErrNotFound
	}
	s.results[result.RunID] = append(s.results[result.RunID], result)
	return nil
}

// ListResults returns a run's results in insertion order.
func (s *EvalStore) ListResults(_ context.Context, runID string) ([]domain.EvalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.results[runID]
	out := make([]domain.EvalResult, len(results))
	copy(out, results)
	return out, nil
}

// Progress summarises a run's counts.
func (s *EvalStore) Progress(_ context.Context, runID string) (domain.EvalProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.EvalProgress{}, domain.ErrNotFound
	}
	progress := domain.EvalProgress{
		Total: len(run.Questions) * run.ConfigPairs(),
	}
	for _, result := range s.results[runID] {
		progress.Completed++
		if result.Err != "" {
			progress.Failed++
		}
	}
	return progress, nil
}
