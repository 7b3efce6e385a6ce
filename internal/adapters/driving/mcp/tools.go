package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query to find passages"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict the search to these documents"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	PassageID    string  `json:"passage_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
	Pages        []int   `json:"pages,omitempty"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the document corpus"`
	ThreadID string `json:"thread_id,omitempty" jsonschema:"continue an existing conversation; a new one is created when omitted"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer        string            `json:"answer"`
	ThreadID      string            `json:"thread_id"`
	MessageID     string            `json:"message_id"`
	FromDocuments bool              `json:"is_from_documents"`
	Citations     []domain.Citation `json:"citations,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search across all indexed document passages",
	}, s.handleSearch)

	if s.ports.Chat != nil && s.ports.Threads != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Ask a question answered from the document corpus, with citations",
		}, s.handleAsk)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := driving.SearchOptions{TopK: limit, DocumentIDs: input.DocumentIDs}
	passages, err := s.ports.Search.Search(ctx, localUser, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(passages)),
		Count:   len(passages),
	}
	for i := range passages {
		output.Results[i] = SearchResultOutput{
			PassageID:    passages[i].ID,
			DocumentID:   passages[i].DocumentID,
			DocumentName: passages[i].DocumentName,
			Score:        passages[i].Score,
			Content:      passages[i].Content,
			Pages:        passages[i].PageNumbers,
		}
	}

	return nil, output, nil
}

// collectSink buffers a chat turn's event stream into a final answer.
type collectSink struct {
	answer        strings.Builder
	citations     []domain.Citation
	messageID     string
	fromDocuments bool
	errCode       string
	errMessage    string
}

func (c *collectSink) Send(event domain.StreamEvent) error {
	switch event.Type {
	case domain.EventToken:
		c.answer.WriteString(event.Content)
	case domain.EventCitation:
		if event.Citation != nil {
			c.citations = append(c.citations, *event.Citation)
		}
	case domain.EventDone:
		c.messageID = event.MessageID
		c.fromDocuments = event.FromDocuments
	case domain.EventError:
		c.errCode = event.Code
		c.errMessage = event.Message
	}
	return nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	threadID := input.ThreadID
	if threadID == "" {
		thread, err := s.ports.Threads.CreateThread(ctx, localUser, "")
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("creating thread: %w", err)
		}
		threadID = thread.ID
	}

	sink := &collectSink{}
	if err := s.ports.Chat.StreamTurn(ctx, localUser, threadID, input.Question, sink); err != nil {
		if sink.errMessage != "" {
			return nil, AskOutput{}, fmt.Errorf("%s: %s", sink.errCode, sink.errMessage)
		}
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:        sink.answer.String(),
		ThreadID:      threadID,
		MessageID:     sink.messageID,
		FromDocuments: sink.fromDocuments,
		Citations:     sink.citations,
	}, nil
}
