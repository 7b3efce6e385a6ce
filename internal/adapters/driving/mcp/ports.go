package mcp

import (
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP
// server. This provides a single injection point.
type Ports struct {
	// Search provides direct hybrid search.
	Search driving.SearchService

	// Chat answers questions against the corpus. Optional; without it
	// the ask tool is not registered.
	Chat driving.ChatService

	// Threads exposes conversation history as resources. Optional.
	Threads driving.ThreadService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
