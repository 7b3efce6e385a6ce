package httpapi

import (
	"net/http"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

type searchRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

type searchHit struct {
	PassageID    string  `json:"passage_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Content      string  `json:"content"`
	Pages        []int   `json:"pages,omitempty"`
	Score        float64 `json:"score"`
}

func toSearchHit(p domain.Passage) searchHit {
	return searchHit{
		PassageID:    p.ID,
		DocumentID:   p.DocumentID,
		DocumentName: p.DocumentName,
		Content:      p.Content,
		Pages:        p.PageNumbers,
		Score:        p.Score,
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	passages, err := s.search.Search(r.Context(), userID(r), req.Query, driving.SearchOptions{
		TopK:        req.TopK,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	hits := make([]searchHit, 0, len(passages))
	for _, p := range passages {
		hits = append(hits, toSearchHit(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}
