package mcp

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	passages []domain.Passage
	lastOpts driving.SearchOptions
	err      error
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	_ string,
	opts driving.SearchOptions,
) ([]domain.Passage, error) {
	m.lastOpts = opts
	return m.passages, m.err
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	events []domain.StreamEvent
	err    error
}

func (m *mockChatService) StreamTurn(
	_ context.Context,
	_, _, _ string,
	sink driving.EventSink,
) error {
	for _, ev := range m.events {
		if err := sink.Send(ev); err != nil {
			return err
		}
	}
	return m.err
}

// mockThreadService is a mock implementation of driving.ThreadService.
type mockThreadService struct {
	threads  []domain.Thread
	messages []domain.Message
	created  *domain.Thread
	err      error
}

func (m *mockThreadService) CreateThread(_ context.Context, userID, name string) (domain.Thread, error) {
	if m.err != nil {
		return domain.Thread{}, m.err
	}
	t := domain.Thread{ID: "t-new", UserID: userID, Name: name}
	m.created = &t
	return t, nil
}

func (m *mockThreadService) GetThread(_ context.Context, _, threadID string) (domain.Thread, error) {
	for _, t := range m.threads {
		if t.ID == threadID {
			return t, nil
		}
	}
	return domain.Thread{}, domain.ErrNotFound
}

func (m *mockThreadService) ListThreads(_ context.Context, _ string) ([]domain.Thread, error) {
	return m.threads, m.err
}

func (m *mockThreadService) RenameThread(_ context.Context, _, _, _ string) error {
	return m.err
}

func (m *mockThreadService) DeleteThread(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockThreadService) History(_ context.Context, _, _ string) ([]domain.Message, error) {
	return m.messages, m.err
}
