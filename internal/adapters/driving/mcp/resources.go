package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for corpus resources.
const uriScheme = "ruhroh://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing conversation threads.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "threads",
		Name:        "threads",
		Description: "List of chat threads over the document corpus",
		MIMEType:    "application/json",
	}, s.handleThreadsResource)

	// Template for thread transcripts.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "threads/{threadId}/messages",
		Name:        "thread-messages",
		Description: "Transcript of a specific chat thread",
		MIMEType:    "application/json",
	}, s.handleMessagesResource)
}

// handleThreadsResource returns a list of all threads.
func (s *Server) handleThreadsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Threads == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}

	threads, err := s.ports.Threads.ListThreads(ctx, localUser)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}

	type threadInfo struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	infos := make([]threadInfo, len(threads))
	for i, thread := range threads {
		infos[i] = threadInfo{ID: thread.ID, Name: thread.Name, UpdatedAt: thread.UpdatedAt}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling threads: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleMessagesResource returns the transcript of one thread.
func (s *Server) handleMessagesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Threads == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	threadID := extractThreadID(req.Params.URI)
	if threadID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	messages, err := s.ports.Threads.History(ctx, localUser, threadID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	type messageInfo struct {
		Role          string `json:"role"`
		Content       string `json:"content"`
		FromDocuments bool   `json:"is_from_documents,omitempty"`
	}

	infos := make([]messageInfo, len(messages))
	for i := range messages {
		infos[i] = messageInfo{
			Role:          string(messages[i].Role),
			Content:       messages[i].Content,
			FromDocuments: messages[i].FromDocuments,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling messages: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractThreadID extracts the thread ID from a URI like
// ruhroh://threads/{threadId}/messages.
func extractThreadID(uri string) string {
	const prefix = uriScheme + "threads/"
	const suffix = "/messages"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
