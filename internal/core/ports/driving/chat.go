package driving

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// EventSink receives the ordered event stream for one chat turn.
// Implementations live in the driving adapters (SSE writer, CLI
// printer, test recorder). Send is called from a single goroutine;
// a non-nil return aborts the turn.
type EventSink interface {
	Send(event domain.StreamEvent) error
}

// ChatService orchestrates a chat turn: plan the question, retrieve and
// fuse passages, generate the answer and stream events to the sink.
type ChatService interface {
	// StreamTurn runs one turn in threadID for userID. The sink always
	// receives a well-formed sequence ending in exactly one done or
	// error event, whatever fails internally. The returned error mirrors
	// a terminal error event for callers that do not inspect the stream.
	StreamTurn(ctx context.Context, userID, threadID, question string, sink EventSink) error
}
