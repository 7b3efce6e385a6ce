package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// Ensure the SSE writer satisfies the sink interface.
var _ driving.EventSink = (*sseSink)(nil)

// sseSink writes stream events to an HTTP response as Server-Sent
// Events, one `data:` line per event, flushed immediately so tokens
// reach the client as they are generated.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(event domain.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("response writer does not support streaming"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	// The service terminates the stream with a done or error event
	// itself; the returned error is only logged here.
	if err := s.chat.StreamTurn(r.Context(), userID(r), r.PathValue("id"), req.Question, sink); err != nil {
		logger.Debug("chat turn ended with error: %v", err)
	}
}
