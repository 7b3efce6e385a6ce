package driven

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// ThreadStore provides chat thread and message persistence.
// Ownership checks live in the services; stores return domain.ErrNotFound
// for missing entities and never filter silently.
type ThreadStore interface {
	// CreateThread persists a new thread.
	CreateThread(ctx context.Context, thread domain.Thread) error

	// GetThread fetches a thread by id.
	GetThread(ctx context.Context, id string) (domain.Thread, error)

	// ListThreads returns the user's threads, most recently updated first.
	ListThreads(ctx context.Context, userID string) ([]domain.Thread, error)

	// RenameThread updates a thread's display name.
	RenameThread(ctx context.Context, id, name string) error

	// TouchThread bumps a thread's updated-at timestamp.
	TouchThread(ctx context.Context, id string) error

	// DeleteThread removes a thread and its messages.
	DeleteThread(ctx context.Context, id string) error

	// AddMessage appends a message to its thread.
	AddMessage(ctx context.Context, msg domain.Message) error

	// ListMessages returns a thread's messages oldest first. A positive
	// limit returns only the most recent limit messages, still oldest
	// first.
	ListMessages(ctx context.Context, threadID string, limit int) ([]domain.Message, error)
}
