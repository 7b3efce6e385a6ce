package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// Ensure ThreadStore implements the interface.
var _ driven.ThreadStore = (*ThreadStore)(nil)

// ThreadStore is an in-memory implementation of driven.ThreadStore.
type ThreadStore struct {
	mu       sync.RWMutex
	threads  map[string]domain.Thread
	messages map[string][]domain.Message
}

// NewThreadStore creates an empty in-memory thread store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		threads:  make(map[string]domain.Thread),
		messages: make(map[string][]domain.Message),
	}
}

// CreateThread persists a new thread.
func (s *ThreadStore) CreateThread(_ context.Context, thread domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.threads[thread.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.threads[thread.ID] = thread
	return nil
}

// GetThread fetches a thread by id.
func (s *ThreadStore) GetThread(_ context.Context, id string) (domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.threads[id]
	if !ok {
		return domain.Thread{}, domain.ErrNotFound
	}
	return thread, nil
}

// ListThreads returns the user's threads, most recently updated first.
func (s *ThreadStore) ListThreads(_ context.Context, userID string) ([]domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var threads []domain.Thread
	for _, t := range s.threads {
		if t.UserID == userID {
			threads = append(threads, t)
		}
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

// RenameThread updates a thread's display name.
func (s *ThreadStore) RenameThread(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[id]
	if !ok {
		return domain.ErrNotFound
	}
	thread.Name = name
	thread.UpdatedAt = time.Now().UTC()
	s.threads[id] = thread
	return nil
}

// TouchThread bumps a thread's updated-at timestamp.
func (s *ThreadStore) TouchThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[id]
	if !ok {
		return domain.ErrNotFound
	}
	thread.UpdatedAt = time.Now().UTC()
	s.threads[id] = thread
	return nil
}

// DeleteThread removes a thread and its messages.
func (s *ThreadStore) DeleteThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.threads, id)
	delete(s.messages, id)
	return nil
}

// AddMessage appends a message to its thread.
func (s *ThreadStore) AddMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[msg.ThreadID]; !ok {
		return domain.ErrNotFound
	}
	s.messages[msg.ThreadID] = append(s.messages[msg.ThreadID], msg)
	return nil
}

// ListMessages returns a thread's messages oldest first, optionally
// limited to the most recent limit messages.
func (s *ThreadStore) ListMessages(_ context.Context, threadID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[threadID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
