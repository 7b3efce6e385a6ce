package cli

import (
	"context"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// cliMockSearch implements driving.SearchService for command tests.
type cliMockSearch struct {
	passages []domain.Passage
	err      error
}

func (m *cliMockSearch) Search(_ context.Context, _, _ string, _ driving.SearchOptions) ([]domain.Passage, error) {
	return m.passages, m.err
}

// cliMockChat implements driving.ChatService for command tests.
type cliMockChat struct {
	events []domain.StreamEvent
	err    error
}

func (m *cliMockChat) StreamTurn(_ context.Context, _, _, _ string, sink driving.EventSink) error {
	for _, ev := range m.events {
		if err := sink.Send(ev); err != nil {
			return err
		}
	}
	return m.err
}

// cliMockThreads implements driving.ThreadService for command tests.
type cliMockThreads struct {
	threads  []domain.Thread
	messages []domain.Message
	err      error
}

func (m *cliMockThreads) CreateThread(_ context.Context, userID, name string) (domain.Thread, error) {
	return domain.Thread{ID: "t-new", UserID: userID, Name: name}, m.err
}

func (m *cliMockThreads) GetThread(_ context.Context, _, _ string) (domain.Thread, error) {
	return domain.Thread{}, m.err
}

func (m *cliMockThreads) ListThreads(_ context.Context, _ string) ([]domain.Thread, error) {
	return m.threads, m.err
}

func (m *cliMockThreads) RenameThread(_ context.Context, _, _, _ string) error { return m.err }
func (m *cliMockThreads) DeleteThread(_ context.Context, _, _ string) error    { return m.err }

func (m *cliMockThreads) History(_ context.Context, _, _ string) ([]domain.Message, error) {
	return m.messages, m.err
}

// cliMockEvals implements driving.EvalService for command tests.
type cliMockEvals struct {
	runs    []domain.EvalRun
	results []domain.EvalResult
	err     error
}

func (m *cliMockEvals) TriggerRun(_ context.Context, req driving.TriggerRequest) (domain.EvalRun, error) {
	return domain.EvalRun{
		ID: "run1", UserID: req.UserID, Status: domain.EvalPending,
		Mode: domain.EvalModeRetrieval, CreatedAt: time.Now(),
	}, m.err
}

func (m *cliMockEvals) RunStatus(_ context.Context, _, runID string) (domain.EvalRun, domain.EvalProgress, error) {
	return domain.EvalRun{ID: runID, Status: domain.EvalCompleted},
		domain.EvalProgress{Completed: 2, Total: 2}, m.err
}

func (m *cliMockEvals) CancelRun(_ context.Context, _, _ string) error { return m.err }

func (m *cliMockEvals) ListRuns(_ context.Context, _ string) ([]domain.EvalRun, error) {
	return m.runs, m.err
}

func (m *cliMockEvals) Results(_ context.Context, _, _ string) ([]domain.EvalResult, error) {
	return m.results, m.err
}

// cliMockWorker implements evalWorker.
type cliMockWorker struct {
	runOnceErr error
}

func (m *cliMockWorker) Run(_ context.Context) {}

func (m *cliMockWorker) RunOnce(_ context.Context) error { return m.runOnceErr }

// setupTestServices injects mocks into the package service vars and
// returns a cleanup restoring them.
func setupTestServices() func() {
	chatService = &cliMockChat{
		events: []domain.StreamEvent{{Type: domain.EventDone, MessageID: "m1", FromDocuments: true}},
	}
	threadService = &cliMockThreads{}
	searchService = &cliMockSearch{
		passages: []domain.Passage{
			{ID: "p1", DocumentID: "d1", DocumentName: "fusion.pdf", Content: "about rank fusion", Score: 0.031},
		},
	}
	evalService = &cliMockEvals{
		results: []domain.EvalResult{
			{RunID: "run1", QuestionID: "q1", ProfileID: "default", Hit: true,
				ReciprocalRank: 1, ContextPrecision: 0.5, Faithfulness: -1, AnswerRelevancy: -1, AnswerCorrectness: -1},
		},
	}
	evalRunner = &cliMockWorker{}

	return func() {
		chatService = nil
		threadService = nil
		searchService = nil
		evalService = nil
		configStore = nil
		evalRunner = nil
	}
}
