package domain

// StreamEventType is the explicit discriminant of the StreamEvent union.
// The type is never inferred from which payload fields are present.
type StreamEventType string

const (
	// EventStatus reports a pipeline stage transition.
	EventStatus StreamEventType = "status"
	// EventToken carries one generated text fragment.
	EventToken StreamEventType = "token"
	// EventCitation carries one resolved citation.
	EventCitation StreamEventType = "citation"
	// EventDone is the success terminal event.
	EventDone StreamEventType = "done"
	// EventError is the failure terminal event.
	EventError StreamEventType = "error"
)

// Stage names reported by status events, in pipeline order.
const (
	StageClassifying = "classifying"
	StageSearching   = "searching"
	StageRefining    = "refining"
	StageThinking    = "thinking"
	StageGenerating  = "generating"
)

// StreamEvent is one element of the ordered event sequence delivered to
// a single client per turn. The sequence always matches
// status+ token* citation* (done|error) with exactly one terminal event;
// citations may also interleave with tokens once the first token has
// been emitted.
type StreamEvent struct {
	// Type discriminates the union.
	Type StreamEventType `json:"type"`

	// Stage is set for status events.
	Stage string `json:"stage,omitempty"`

	// Content is set for token events, and optionally on done events to
	// let clients recover from missed tokens.
	Content string `json:"content,omitempty"`

	// Citation is set for citation events.
	Citation *Citation `json:"citation,omitempty"`

	// MessageID is set on done events: the persisted assistant message.
	MessageID string `json:"message_id,omitempty"`

	// FromDocuments is set on done events.
	FromDocuments bool `json:"is_from_documents,omitempty"`

	// Code is a coarse machine-readable error code on error events.
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message on error events.
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Coarse error codes surfaced on error stream events. Provider-internal
// detail never reaches the client.
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeProvider     = "PROVIDER_ERROR"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeCancelled    = "CANCELLED"
	ErrCodeUnauthorised = "UNAUTHORISED"
)
