package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// evalStore implements driven.EvalStore.
type evalStore struct {
	store *Store
}

var _ driven.EvalStore = (*evalStore)(nil)

// CreateRun persists a new evaluation run.
func (s *evalStore) CreateRun(ctx context.Context, run domain.EvalRun) error {
	profilesJSON, err := json.Marshal(run.Profiles)
	if err != nil {
		return fmt.Errorf("marshalling profiles: %w", err)
	}
	chunksJSON, err := json.Marshal(run.ChunkConfigIDs)
	if err != nil {
		return fmt.Errorf("marshalling chunk configs: %w", err)
	}
	questionsJSON, err := json.Marshal(run.Questions)
	if err != nil {
		return fmt.Errorf("marshalling questions: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO eval_runs (id, user_id, status, mode, profiles, chunk_config_ids, questions, sample_size, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.UserID, string(run.Status), string(run.Mode), string(profilesJSON),
		string(chunksJSON), string(questionsJSON), run.SampleSize, run.Error, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *evalStore) GetRun(ctx context.Context, id string) (domain.EvalRun, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, mode, profiles, chunk_config_ids, questions, sample_size, error, created_at, completed_at
		FROM eval_runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns the user's runs, newest first.
func (s *evalStore) ListRuns(ctx context.Context, userID string) ([]domain.EvalRun, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, status, mode, profiles, chunk_config_ids, questions, sample_size, error, created_at, completed_at
		FROM eval_runs WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.EvalRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// NextPending returns the oldest pending run.
func (s *evalStore) NextPending(ctx context.Context) (domain.EvalRun, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, mode, profiles, chunk_config_ids, questions, sample_size, error, created_at, completed_at
		FROM eval_runs WHERE status = ?
		ORDER BY created_at
		LIMIT 1
	`, string(domain.EvalPending))
	return scanRun(row)
}

// SetQuestions replaces a run's question set.
func (s *evalStore) SetQuestions(ctx context.Context, id string, questions []domain.EvalQuestion) error {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshalling questions: %w", err)
	}
	_, err = s.store.db.ExecContext(ctx, `
		UPDATE eval_runs SET questions = ? WHERE id = ?
	`, string(questionsJSON), id)
	if err != nil {
		return fmt.Errorf("setting questions: %w", err)
	}
	return nil
}

// ClaimRun atomically moves a pending run to running. A run that is not
// pending any more returns ErrRunClaimed.
func (s *evalStore) ClaimRun(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE eval_runs SET status = ? WHERE id = ? AND status = ?
	`, string(domain.EvalRunning), id, string(domain.EvalPending))
	if err != nil {
		return fmt.Errorf("claiming run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claiming run: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetRun(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrRunClaimed
	}
	return nil
}

// RequestCancel marks a run for cancellation: a pending run cancels
// immediately, a running run moves to cancelling for the worker to
// acknowledge. Terminal runs return ErrRunNotCancellable.
func (s *evalStore) RequestCancel(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE eval_runs SET status = ?, completed_at = ? WHERE id = ? AND status = ?
	`, string(domain.EvalCancelled), now, id, string(domain.EvalPending))
	if err != nil {
		return fmt.Errorf("cancelling run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	res, err = s.store.db.ExecContext(ctx, `
		UPDATE eval_runs SET status = ? WHERE id = ? AND status = ?
	`, string(domain.EvalCancelling), id, string(domain.EvalRunning))
	if err != nil {
		return fmt.Errorf("cancelling run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	if _, err := s.GetRun(ctx, id); errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return domain.ErrRunNotCancellable
}

// SetStatus updates a run's status; terminal states also record the
// completion time.
func (s *evalStore) SetStatus(ctx context.Context, id string, status domain.EvalStatus, errMsg string) error {
	var res sql.Result
	var err error
	if status.Terminal() {
		res, err = s.store.db.ExecContext(ctx, `
			UPDATE eval_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?
		`, string(status), errMsg, time.Now().UTC(), id)
	} else {
		res, err = s.store.db.ExecContext(ctx, `
			UPDATE eval_runs SET status = ?, error = ? WHERE id = ?
		`, string(status), errMsg, id)
	}
	if err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting status: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RequeueRunning returns orphaned running runs to pending and resolves
// stale cancelling runs to cancelled. Called once at worker startup.
func (s *evalStore) RequeueRunning(ctx context.Context) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE eval_runs SET status = ? WHERE status = ?
	`, string(domain.EvalPending), string(domain.EvalRunning))
	if err != nil {
		return 0, fmt.Errorf("requeueing runs: %w", err)
	}
	requeued, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeueing runs: %w", err)
	}

	if _, err := s.store.db.ExecContext(ctx, `
		UPDATE eval_runs SET status = ?, completed_at = ? WHERE status = ?
	`, string(domain.EvalCancelled), time.Now().UTC(), string(domain.EvalCancelling)); err != nil {
		return int(requeued), fmt.Errorf("resolving cancelling runs: %w", err)
	}
	return int(requeued), nil
}

// SaveCheckpoint stores a run's checkpoint, superseding any prior one.
func (s *evalStore) SaveCheckpoint(ctx context.Context, cp domain.EvalCheckpoint) error {
	idsJSON, err := json.Marshal(cp.CompletedQuestionIDs)
	if err != nil {
		return fmt.Errorf("marshalling question ids: %w", err)
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO eval_checkpoints (run_id, config_index, completed_question_ids, phase, written_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			config_index = excluded.config_index,
			completed_question_ids = excluded.completed_question_ids,
			phase = excluded.phase,
			written_at = excluded.written_at
	`, cp.RunID, cp.ConfigIndex, string(idsJSON), cp.Phase, cp.WrittenAt)
	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a run's checkpoint.
func (s *evalStore) GetCheckpoint(ctx context.Context, runID string) (domain.EvalCheckpoint, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT run_id, config_index, completed_question_ids, phase, written_at
		FROM eval_checkpoints WHERE run_id = ?
	`, runID)

	var cp domain.EvalCheckpoint
	var idsJSON string
	if err := row.Scan(&cp.RunID, &cp.ConfigIndex, &idsJSON, &cp.Phase, &cp.WrittenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EvalCheckpoint{}, domain.ErrNotFound
		}
		return domain.EvalCheckpoint{}, fmt.Errorf("scanning checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &cp.CompletedQuestionIDs); err != nil {
		return domain.EvalCheckpoint{}, fmt.Errorf("unmarshalling question ids: %w", err)
	}
	return cp, nil
}

// SaveResult stores one question result, idempotently.
func (s *evalStore) SaveResult(ctx context.Context, result domain.EvalResult) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO eval_results (run_id, question_id, profile_id, chunk_config_id, hit, reciprocal_rank,
			context_precision, faithfulness, answer_relevancy, answer_correctness, latency_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, question_id, profile_id, chunk_config_id) DO UPDATE SET
			hit = excluded.hit,
			reciprocal_rank = excluded.reciprocal_rank,
			context_precision = excluded.context_precision,
			faithfulness = excluded.faithfulness,
			answer_relevancy = excluded.answer_relevancy,
			answer_correctness = excluded.answer_correctness,
			latency_ms = excluded.latency_ms,
			error = excluded.error,
			created_at = excluded.created_at
	`, result.RunID, result.QuestionID, result.ProfileID, result.ChunkConfigID, result.Hit,
		result.ReciprocalRank, result.ContextPrecision, result.Faithfulness, result.AnswerRelevancy,
		result.AnswerCorrectness, result.LatencyMS, result.Err, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	return nil
}

// ListResults returns a run's results in insertion order.
func (s *evalStore) ListResults(ctx context.Context, runID string) ([]domain.EvalResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, question_id, profile_id, chunk_config_id, hit, reciprocal_rank,
			context_precision, faithfulness, answer_relevancy, answer_correctness, latency_ms, error, created_at
		FROM eval_results WHERE run_id = ?
		ORDER BY created_at, question_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []domain.EvalResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.EvalResult
		if err := rows.Scan(&r.RunID, &r.QuestionID, &r.ProfileID, &r.ChunkConfigID, &r.Hit,
			&r.ReciprocalRank, &r.ContextPrecision, &r.Faithfulness, &r.AnswerRelevancy,
			&r.AnswerCorrectness, &r.LatencyMS, &r.Err, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return results, nil
}

// Progress summarises a run's counts.
func (s *evalStore) Progress(ctx context.Context, runID string) (domain.EvalProgress, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return domain.EvalProgress{}, err
	}

	var progress domain.EvalProgress
	progress.Total = len(run.Questions) * run.ConfigPairs()
	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(error != ''), 0) FROM eval_results WHERE run_id = ?
	`, runID)
	if err := row.Scan(&progress.Completed, &progress.Failed); err != nil {
		return domain.EvalProgress{}, fmt.Errorf("counting results: %w", err)
	}
	return progress, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (domain.EvalRun, error) {
	var run domain.EvalRun
	var status, mode, profilesJSON string
	var chunksJSON, questionsJSON sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.UserID, &status, &mode, &profilesJSON,
		&chunksJSON, &questionsJSON, &run.SampleSize, &run.Error, &run.CreatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EvalRun{}, domain.ErrNotFound
		}
		return domain.EvalRun{}, fmt.Errorf("scanning run: %w", err)
	}

	run.Status = domain.EvalStatus(status)
	run.Mode = domain.EvalMode(mode)
	if err := json.Unmarshal([]byte(profilesJSON), &run.Profiles); err != nil {
		return domain.EvalRun{}, fmt.Errorf("unmarshalling profiles: %w", err)
	}
	if chunksJSON.Valid && chunksJSON.String != "" && chunksJSON.String != "null" {
		if err := json.Unmarshal([]byte(chunksJSON.String), &run.ChunkConfigIDs); err != nil {
			return domain.EvalRun{}, fmt.Errorf("unmarshalling chunk configs: %w", err)
		}
	}
	if questionsJSON.Valid && questionsJSON.String != "" && questionsJSON.String != "null" {
		if err := json.Unmarshal([]byte(questionsJSON.String), &run.Questions); err != nil {
			return domain.EvalRun{}, fmt.Errorf("unmarshalling questions: %w", err)
		}
	}
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return run, nil
}
