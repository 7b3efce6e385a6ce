package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

type mockChatService struct {
	streamFunc func(ctx context.Context, userID, threadID, question string, sink driving.EventSink) error
}

func (m *mockChatService) StreamTurn(ctx context.Context, userID, threadID, question string, sink driving.EventSink) error {
	return m.streamFunc(ctx, userID, threadID, question, sink)
}

type mockThreadService struct {
	threads  map[string]domain.Thread
	messages map[string][]domain.Message
	lastUser string
}

func newMockThreadService() *mockThreadService {
	return &mockThreadService{
		threads:  make(map[string]domain.Thread),
		messages: make(map[string][]domain.Message),
	}
}

func (m *mockThreadService) CreateThread(_ context.Context, userID, name string) (domain.Thread, error) {
	m.lastUser = userID
	t := domain.Thread{ID: fmt.Sprintf("t%d", len(m.threads)+1), UserID: userID, Name: name, CreatedAt: time.Now()}
	m.threads[t.ID] = t
	return t, nil
}

func (m *mockThreadService) GetThread(_ context.Context, userID, threadID string) (domain.Thread, error) {
	t, ok := m.threads[threadID]
	if !ok || t.UserID != userID {
		return domain.Thread{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *mockThreadService) ListThreads(_ context.Context, userID string) ([]domain.Thread, error) {
	var out []domain.Thread //nolint:prealloc // size unknown until filtered
	for _, t := range m.threads {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockThreadService) RenameThread(_ context.Context, userID, threadID, name string) error {
	t, ok := m.threads[threadID]
	if !ok || t.UserID != userID {
		return domain.ErrNotFound
	}
	if name == "" {
		return domain.ErrInvalidInput
	}
	t.Name = name
	m.threads[threadID] = t
	return nil
}

func (m *mockThreadService) DeleteThread(_ context.Context, userID, threadID string) error {
	t, ok := m.threads[threadID]
	if !ok || t.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.threads, threadID)
	return nil
}

func (m *mockThreadService) History(_ context.Context, userID, threadID string) ([]domain.Message, error) {
	if _, err := m.GetThread(context.Background(), userID, threadID); err != nil {
		return nil, err
	}
	return m.messages[threadID], nil
}

type mockSearchService struct {
	searchFunc func(ctx context.Context, userID, query string, opts driving.SearchOptions) ([]domain.Passage, error)
}

func (m *mockSearchService) Search(ctx context.Context, userID, query string, opts driving.SearchOptions) ([]domain.Passage, error) {
	return m.searchFunc(ctx, userID, query, opts)
}

type mockEvalService struct {
	runs map[string]domain.EvalRun
}

func (m *mockEvalService) TriggerRun(_ context.Context, req driving.TriggerRequest) (domain.EvalRun, error) {
	if req.Mode != "" && req.Mode != domain.EvalModeRetrieval && req.Mode != domain.EvalModeGeneration {
		return domain.EvalRun{}, domain.ErrInvalidInput
	}
	run := domain.EvalRun{
		ID: "run1", UserID: req.UserID, Status: domain.EvalPending,
		Mode: domain.EvalModeRetrieval, CreatedAt: time.Now(),
		Profiles: []domain.RetrievalProfile{domain.DefaultRetrievalProfile()},
	}
	if m.runs == nil {
		m.runs = make(map[string]domain.EvalRun)
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *mockEvalService) RunStatus(_ context.Context, userID, runID string) (domain.EvalRun, domain.EvalProgress, error) {
	run, ok := m.runs[runID]
	if !ok || run.UserID != userID {
		return domain.EvalRun{}, domain.EvalProgress{}, domain.ErrNotFound
	}
	return run, domain.EvalProgress{Completed: 1, Total: 2}, nil
}

func (m *mockEvalService) CancelRun(_ context.Context, userID, runID string) error {
	run, ok := m.runs[runID]
	if !ok || run.UserID != userID {
		return domain.ErrNotFound
	}
	if run.Status.Terminal() {
		return domain.ErrRunNotCancellable
	}
	return nil
}

func (m *mockEvalService) ListRuns(_ context.Context, userID string) ([]domain.EvalRun, error) {
	var out []domain.EvalRun //nolint:prealloc // size unknown until filtered
	for _, run := range m.runs {
		if run.UserID == userID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *mockEvalService) Results(_ context.Context, userID, runID string) ([]domain.EvalResult, error) {
	if _, ok := m.runs[runID]; !ok {
		return nil, domain.ErrNotFound
	}
	return []domain.EvalResult{{RunID: runID, QuestionID: "q1", ProfileID: "default", Hit: true, ReciprocalRank: 1}}, nil
}

type serverFixture struct {
	server  *httptest.Server
	chat    *mockChatService
	threads *mockThreadService
	search  *mockSearchService
	evals   *mockEvalService
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		chat: &mockChatService{
			streamFunc: func(_ context.Context, _, _, _ string, sink driving.EventSink) error {
				return sink.Send(domain.StreamEvent{Type: domain.EventDone, MessageID: "m1"})
			},
		},
		threads: newMockThreadService(),
		search: &mockSearchService{
			searchFunc: func(_ context.Context, _, _ string, _ driving.SearchOptions) ([]domain.Passage, error) {
				return nil, nil
			},
		},
		evals: &mockEvalService{},
	}
	s := NewServer(Config{}, f.chat, f.threads, f.search, f.evals)
	f.server = httptest.NewServer(s.Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestServer_Health tests the liveness endpoint
func TestServer_Health(t *testing.T) {
	f := setupServer(t)
	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestServer_ThreadLifecycle tests thread CRUD over HTTP
func TestServer_ThreadLifecycle(t *testing.T) {
	f := setupServer(t)

	resp := f.do(t, http.MethodPost, "/api/v1/threads", map[string]string{"name": "notes"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created threadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "notes", created.Name)
	assert.Equal(t, defaultUser, f.threads.lastUser)

	resp = f.do(t, http.MethodGet, "/api/v1/threads", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []threadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)

	resp = f.do(t, http.MethodPatch, "/api/v1/threads/"+created.ID, map[string]string{"name": "renamed"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/threads/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/threads/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestServer_ErrorMapping tests domain error to status code translation
func TestServer_ErrorMapping(t *testing.T) {
	f := setupServer(t)

	resp := f.do(t, http.MethodGet, "/api/v1/threads/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, domain.ErrCodeNotFound, body.Code)

	resp = f.do(t, http.MethodPost, "/api/v1/eval/runs", map[string]string{"mode": "benchmark"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestServer_MalformedBody tests that junk input is a 400, not a 500
func TestServer_MalformedBody(t *testing.T) {
	f := setupServer(t)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/threads", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestServer_UserHeader tests that X-User-ID scopes requests
func TestServer_UserHeader(t *testing.T) {
	f := setupServer(t)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/threads",
		strings.NewReader(`{"name":"theirs"}`))
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice", f.threads.lastUser)

	// The default user cannot see alice's thread.
	listResp := f.do(t, http.MethodGet, "/api/v1/threads", nil)
	var list []threadResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	assert.Empty(t, list)
}

// TestServer_Search tests the direct search endpoint
func TestServer_Search(t *testing.T) {
	f := setupServer(t)
	var gotOpts driving.SearchOptions
	f.search.searchFunc = func(_ context.Context, _, query string, opts driving.SearchOptions) ([]domain.Passage, error) {
		gotOpts = opts
		assert.Equal(t, "reciprocal rank", query)
		return []domain.Passage{
			{ID: "p1", DocumentID: "d1", DocumentName: "fusion.pdf", Content: "about rrf", Score: 0.03},
		}, nil
	}

	resp := f.do(t, http.MethodPost, "/api/v1/search", searchRequest{
		Query: "reciprocal rank", TopK: 5, DocumentIDs: []string{"d1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []searchHit `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "p1", body.Results[0].PassageID)
	assert.Equal(t, 5, gotOpts.TopK)
	assert.Equal(t, []string{"d1"}, gotOpts.DocumentIDs)
}

// TestServer_ChatTurn tests the SSE stream framing
func TestServer_ChatTurn(t *testing.T) {
	f := setupServer(t)
	f.threads.threads["t1"] = domain.Thread{ID: "t1", UserID: defaultUser, Name: "notes"}
	f.chat.streamFunc = func(_ context.Context, userID, threadID, question string, sink driving.EventSink) error {
		assert.Equal(t, defaultUser, userID)
		assert.Equal(t, "t1", threadID)
		assert.Equal(t, "what is rrf?", question)
		for _, ev := range []domain.StreamEvent{
			{Type: domain.EventStatus, Stage: domain.StageClassifying},
			{Type: domain.EventToken, Content: "Fusion "},
			{Type: domain.EventToken, Content: "[1]."},
			{Type: domain.EventCitation, Citation: &domain.Citation{Index: 1, PassageID: "p1"}},
			{Type: domain.EventDone, MessageID: "m1", FromDocuments: true},
		} {
			if err := sink.Send(ev); err != nil {
				return err
			}
		}
		return nil
	}

	resp := f.do(t, http.MethodPost, "/api/v1/threads/t1/messages", map[string]string{"question": "what is rrf?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []domain.StreamEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 5)
	assert.Equal(t, domain.EventStatus, events[0].Type)
	assert.Equal(t, "Fusion ", events[1].Content)
	require.NotNil(t, events[3].Citation)
	assert.Equal(t, "p1", events[3].Citation.PassageID)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventDone, last.Type)
	assert.Equal(t, "m1", last.MessageID)
	assert.True(t, last.FromDocuments)
}

// TestServer_EvalEndpoints tests trigger, status, cancel and results
func TestServer_EvalEndpoints(t *testing.T) {
	f := setupServer(t)

	resp := f.do(t, http.MethodPost, "/api/v1/eval/runs", triggerRunRequest{Mode: "retrieval"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var run runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "pending", run.Status)

	resp = f.do(t, http.MethodGet, "/api/v1/eval/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.NotNil(t, status.Progress)
	assert.Equal(t, 1, status.Progress.Completed)
	assert.Equal(t, 2, status.Progress.Total)

	resp = f.do(t, http.MethodDelete, "/api/v1/eval/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/eval/runs/"+run.ID+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results struct {
		Results []resultResponse `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results.Results, 1)
	assert.True(t, results.Results[0].Hit)
}
