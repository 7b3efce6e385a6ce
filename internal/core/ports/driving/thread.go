package driving

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// ThreadService manages chat threads and their history. All operations
// enforce ownership: acting on another user's thread returns
// domain.ErrNotFound, so callers cannot probe for thread existence.
type ThreadService interface {
	// CreateThread creates a thread for the user.
	CreateThread(ctx context.Context, userID, name string) (domain.Thread, error)

	// GetThread fetches one of the user's threads.
	GetThread(ctx context.Context, userID, threadID string) (domain.Thread, error)

	// ListThreads returns the user's threads, most recently updated first.
	ListThreads(ctx context.Context, userID string) ([]domain.Thread, error)

	// RenameThread updates a thread's display name.
	RenameThread(ctx context.Context, userID, threadID, name string) error

	// DeleteThread removes a thread and its messages.
	DeleteThread(ctx context.Context, userID, threadID string) error

	// History returns a thread's messages oldest first.
	History(ctx context.Context, userID, threadID string) ([]domain.Message, error)
}
