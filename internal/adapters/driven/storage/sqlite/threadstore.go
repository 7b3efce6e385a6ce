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

// threadStore implements driven.ThreadStore.
type threadStore struct {
	store *Store
}

var _ driven.ThreadStore = (*threadStore)(nil)

// CreateThread persists a new thread.
func (s *threadStore) CreateThread(ctx context.Context, thread domain.Thread) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO threads (id, user_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, thread.ID, thread.UserID, thread.Name, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating thread: %w", err)
	}
	return nil
}

// GetThread retrieves a thread by ID.
func (s *threadStore) GetThread(ctx context.Context, id string) (domain.Thread, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM threads WHERE id = ?
	`, id)

	var thread domain.Thread
	if err := row.Scan(&thread.ID, &thread.UserID, &thread.Name,
		&thread.CreatedAt, &thread.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Thread{}, domain.ErrNotFound
		}
		return domain.Thread{}, fmt.Errorf("scanning thread: %w", err)
	}
	return thread, nil
}

// ListThreads returns the user's threads, most recently updated first.
func (s *threadStore) ListThreads(ctx context.Context, userID string) ([]domain.Thread, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM threads WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var threads []domain.Thread //nolint:prealloc // size unknown from query
	for rows.Next() {
		var thread domain.Thread
		if err := rows.Scan(&thread.ID, &thread.UserID, &thread.Name,
			&thread.CreatedAt, &thread.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", err)
	}
	return threads, nil
}

// RenameThread updates a thread's display name.
func (s *threadStore) RenameThread(ctx context.Context, id, name string) error {
	return s.touch(ctx, id, "UPDATE threads SET name = ?, updated_at = ? WHERE id = ?", name, time.Now().UTC(), id)
}

// TouchThread bumps a thread's updated-at timestamp.
func (s *threadStore) TouchThread(ctx context.Context, id string) error {
	return s.touch(ctx, id, "UPDATE threads SET updated_at = ? WHERE id = ?", time.Now().UTC(), id)
}

func (s *threadStore) touch(ctx context.Context, id, query string, args ...any) error {
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating thread %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating thread %s: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteThread removes a thread; messages cascade.
func (s *threadStore) DeleteThread(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddMessage appends a message to its thread.
func (s *threadStore) AddMessage(ctx context.Context, msg domain.Message) error {
	citationsJSON, err := json.Marshal(msg.Citations)
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, role, content, citations, model_used, from_documents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ThreadID, string(msg.Role), msg.Content, string(citationsJSON),
		msg.ModelUsed, msg.FromDocuments, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	return nil
}

// ListMessages returns a thread's messages oldest first, optionally
// limited to the most recent limit messages.
func (s *threadStore) ListMessages(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, thread_id, role, content, citations, model_used, from_documents, created_at
		FROM messages WHERE thread_id = ?
		ORDER BY created_at, id`
	args := []any{threadID}
	if limit > 0 {
		// Take the newest limit rows, then restore oldest-first order.
		query = `
		SELECT id, thread_id, role, content, citations, model_used, from_documents, created_at
		FROM (
			SELECT id, thread_id, role, content, citations, model_used, from_documents, created_at
			FROM messages WHERE thread_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at, id`
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var msg domain.Message
		var role, citationsJSON string
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &role, &msg.Content,
			&citationsJSON, &msg.ModelUsed, &msg.FromDocuments, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		if citationsJSON != "" && citationsJSON != "null" {
			if err := json.Unmarshal([]byte(citationsJSON), &msg.Citations); err != nil {
				return nil, fmt.Errorf("unmarshalling citations: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}
