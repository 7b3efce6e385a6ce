package domain

import "time"

// Thread is a chat conversation owned by a user.
type Thread struct {
	// ID is the thread identifier.
	ID string

	// UserID is the owning user.
	UserID string

	// Name is the display name.
	Name string

	// CreatedAt is when the thread was created.
	CreatedAt time.Time

	// UpdatedAt is bumped on every new message.
	UpdatedAt time.Time
}

// MessageRole distinguishes user and assistant messages.
type MessageRole string

const (
	// RoleUser marks a message written by the user.
	RoleUser MessageRole = "user"
	// RoleAssistant marks a generated answer.
	RoleAssistant MessageRole = "assistant"
)

// Message is one persisted turn half within a thread.
type Message struct {
	// ID is the message identifier.
	ID string

	// ThreadID links to the containing thread.
	ThreadID string

	// Role is user or assistant.
	Role MessageRole

	// Content is the message text. For assistant messages the citation
	// markers have been renumbered sequentially.
	Content string

	// Citations are the sources used by an assistant message.
	Citations []Citation

	// ModelUsed is the generation model for assistant messages.
	ModelUsed string

	// FromDocuments reports whether the answer was grounded in the
	// user's documents (false when the fallback policy applied).
	FromDocuments bool

	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// Citation links an answer's [n] marker to the passage it cites.
// Derived from the passages actually referenced by the generation,
// renumbered so indices are sequential from 1.
type Citation struct {
	// Index is the sequential citation number as it appears in the answer.
	Index int `json:"index"`

	// PassageID identifies the cited passage.
	PassageID string `json:"passage_id"`

	// DocumentID identifies the cited document.
	DocumentID string `json:"document_id"`

	// DocumentName is the cited document's display name.
	DocumentName string `json:"document_name"`

	// Page is the first source page of the passage, zero if unknown.
	Page int `json:"page,omitempty"`

	// Excerpt is the opening of the cited passage text.
	Excerpt string `json:"excerpt"`
}
