package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStreamEvent_Terminal tests terminal event detection
func TestStreamEvent_Terminal(t *testing.T) {
	assert.False(t, StreamEvent{Type: EventStatus}.Terminal())
	assert.False(t, StreamEvent{Type: EventToken}.Terminal())
	assert.False(t, StreamEvent{Type: EventCitation}.Terminal())
	assert.True(t, StreamEvent{Type: EventDone}.Terminal())
	assert.True(t, StreamEvent{Type: EventError}.Terminal())
}

// TestStreamEvent_JSON_OmitsEmptyFields tests that unset payload fields
// stay out of the wire form
func TestStreamEvent_JSON_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(StreamEvent{Type: EventToken, Content: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"token","content":"hello"}`, string(data))
}

// TestStreamEvent_JSON_Done tests the done event wire form
func TestStreamEvent_JSON_Done(t *testing.T) {
	data, err := json.Marshal(StreamEvent{
		Type:          EventDone,
		MessageID:     "msg-1",
		FromDocuments: true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"done","message_id":"msg-1","is_from_documents":true}`, string(data))
}

// TestStreamEvent_JSON_Citation tests the citation event wire form
func TestStreamEvent_JSON_Citation(t *testing.T) {
	ev := StreamEvent{
		Type: EventCitation,
		Citation: &Citation{
			Index:        1,
			PassageID:    "p-1",
			DocumentID:   "d-1",
			DocumentName: "report.pdf",
			Page:         4,
			Excerpt:      "The quarterly figures...",
		},
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "citation", decoded["type"])
	require.Contains(t, decoded, "citation")
}
