package httpapi

import (
	"net/http"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

type threadResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID            string            `json:"id"`
	Role          string            `json:"role"`
	Content       string            `json:"content"`
	Citations     []domain.Citation `json:"citations,omitempty"`
	ModelUsed     string            `json:"model_used,omitempty"`
	FromDocuments bool              `json:"is_from_documents"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toThreadResponse(t domain.Thread) threadResponse {
	return threadResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:            m.ID,
		Role:          string(m.Role),
		Content:       m.Content,
		Citations:     m.Citations,
		ModelUsed:     m.ModelUsed,
		FromDocuments: m.FromDocuments,
		CreatedAt:     m.CreatedAt,
	}
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	thread, err := s.threads.CreateThread(r.Context(), userID(r), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toThreadResponse(thread))
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.threads.ListThreads(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]threadResponse, 0, len(threads))
	for _, t := range threads {
		out = append(out, toThreadResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.threads.GetThread(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toThreadResponse(thread))
}

func (s *Server) handleRenameThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.threads.RenameThread(r.Context(), userID(r), r.PathValue("id"), req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := s.threads.DeleteThread(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := s.threads.History(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}
