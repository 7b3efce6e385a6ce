package services

import (
	"context"
	"sync"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// testProfile returns the default retrieval profile used across tests.
func testProfile() domain.RetrievalProfile {
	return domain.DefaultRetrievalProfile()
}

// mockLLM is a scriptable LLMProvider for tests.
type mockLLM struct {
	mu            sync.Mutex
	completeFunc  func(ctx context.Context, req driven.CompletionRequest) (string, error)
	streamFunc    func(ctx context.Context, req driven.CompletionRequest, onToken func(string) error) (string, error)
	embedFunc     func(ctx context.Context, text string) ([]float32, error)
	completeCalls int
	streamCalls   int
	embedCalls    int
	completeReqs  []driven.CompletionRequest
}

var _ driven.LLMProvider = (*mockLLM)(nil)

func (m *mockLLM) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.completeCalls++
	m.completeReqs = append(m.completeReqs, req)
	fn := m.completeFunc
	m.mu.Unlock()
	if fn == nil {
		return "", nil
	}
	return fn(ctx, req)
}

func (m *mockLLM) CompleteStream(ctx context.Context, req driven.CompletionRequest, onToken func(string) error) (string, error) {
	m.mu.Lock()
	m.streamCalls++
	fn := m.streamFunc
	m.mu.Unlock()
	if fn == nil {
		return "", nil
	}
	return fn(ctx, req, onToken)
}

func (m *mockLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	fn := m.embedFunc
	m.mu.Unlock()
	if fn == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return fn(ctx, text)
}

func (m *mockLLM) ModelName() string            { return "mock-model" }
func (m *mockLLM) Ping(ctx context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// mockPassageStore is a scriptable PassageStore for tests.
type mockPassageStore struct {
	vectorFunc  func(ctx context.Context, embedding []float32, k int, filter domain.SearchFilter) (domain.RankedList, error)
	keywordFunc func(ctx context.Context, query string, k int, filter domain.SearchFilter) (domain.RankedList, error)
	getFunc     func(ctx context.Context, ids []string) ([]domain.Passage, error)
	sampleFunc  func(ctx context.Context, userID string, n int) ([]domain.Passage, error)
}

var _ driven.PassageStore = (*mockPassageStore)(nil)

func (m *mockPassageStore) VectorSearch(ctx context.Context, embedding []float32, k int, filter domain.SearchFilter) (domain.RankedList, error) {
	if m.vectorFunc == nil {
		return nil, nil
	}
	return m.vectorFunc(ctx, embedding, k, filter)
}

func (m *mockPassageStore) KeywordSearch(ctx context.Context, query string, k int, filter domain.SearchFilter) (domain.RankedList, error) {
	if m.keywordFunc == nil {
		return nil, nil
	}
	return m.keywordFunc(ctx, query, k, filter)
}

func (m *mockPassageStore) GetPassages(ctx context.Context, ids []string) ([]domain.Passage, error) {
	if m.getFunc == nil {
		passages := make([]domain.Passage, len(ids))
		for i, id := range ids {
			passages[i] = domain.Passage{ID: id, DocumentID: "doc-" + id, DocumentName: "doc.pdf", Content: "content of " + id}
		}
		return passages, nil
	}
	return m.getFunc(ctx, ids)
}

func (m *mockPassageStore) SamplePassages(ctx context.Context, userID string, n int) ([]domain.Passage, error) {
	if m.sampleFunc == nil {
		return nil, nil
	}
	return m.sampleFunc(ctx, userID, n)
}

func (m *mockPassageStore) Close() error { return nil }

// recordingSink captures the event stream for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.StreamEvent
	fail   error // returned by Send when set
}

var _ driving.EventSink = (*recordingSink)(nil)

func (s *recordingSink) Send(event domain.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []domain.StreamEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]domain.StreamEventType, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type
	}
	return types
}

func (s *recordingSink) last() domain.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}
