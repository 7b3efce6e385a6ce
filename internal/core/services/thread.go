package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// Ensure ThreadService implements the interface.
var _ driving.ThreadService = (*ThreadService)(nil)

// ThreadService manages chat threads with ownership enforcement.
type ThreadService struct {
	threads driven.ThreadStore
}

// NewThreadService creates a thread service.
func NewThreadService(threads driven.ThreadStore) *ThreadService {
	return &ThreadService{threads: threads}
}

// CreateThread creates a thread for the user.
func (s *ThreadService) CreateThread(ctx context.Context, userID, name string) (domain.Thread, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New chat"
	}
	now := time.Now().UTC()
	thread := domain.Thread{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.threads.CreateThread(ctx, thread); err != nil {
		return domain.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

// GetThread fetches one of the user's threads.
func (s *ThreadService) GetThread(ctx context.Context, userID, threadID string) (domain.Thread, error) {
	return s.owned(ctx, userID, threadID)
}

// ListThreads returns the user's threads, most recently updated first.
func (s *ThreadService) ListThreads(ctx context.Context, userID string) ([]domain.Thread, error) {
	return s.threads.ListThreads(ctx, userID)
}

// RenameThread updates a thread's display name.
func (s *ThreadService) RenameThread(ctx context.Context, userID, threadID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty thread name", domain.ErrInvalidInput)
	}
	if _, err := s.owned(ctx, userID, threadID); err != nil {
		return err
	}
	return s.threads.RenameThread(ctx, threadID, name)
}

// DeleteThread removes a thread and its messages.
func (s *ThreadService) DeleteThread(ctx context.Context, userID, threadID string) error {
	if _, err := s.owned(ctx, userID, threadID); err != nil {
		return err
	}
	return s.threads.DeleteThread(ctx, threadID)
}

// History returns a thread's messages oldest first.
func (s *ThreadService) History(ctx context.Context, userID, threadID string) ([]domain.Message, error) {
	if _, err := s.owned(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return s.threads.ListMessages(ctx, threadID, 0)
}

// owned fetches a thread, reporting another user's thread as missing.
func (s *ThreadService) owned(ctx context.Context, userID, threadID string) (domain.Thread, error) {
	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return domain.Thread{}, err
	}
	if thread.UserID != userID {
		return domain.Thread{}, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return thread, nil
}
