package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// Ensure PassageStore implements the interface.
var _ driven.PassageStore = (*PassageStore)(nil)

// storedPassage keeps a passage with its index metadata.
type storedPassage struct {
	passage     domain.Passage
	embedding   []float32
	userID      string
	chunkConfig string
	ready       bool
}

// PassageStore is an in-memory implementation of driven.PassageStore.
// Vector search is brute-force cosine similarity; keyword search is
// term-overlap scoring. Both honour the filter the way the production
// adapters do: non-ready documents and other users never match.
type PassageStore struct {
	mu       sync.RWMutex
	passages map[string]storedPassage
	order    []string
}

// NewPassageStore creates an empty in-memory passage store.
func NewPassageStore() *PassageStore {
	return &PassageStore{passages: make(map[string]storedPassage)}
}

// Add seeds a passage. A nil embedding leaves it invisible to vector
// search; ready=false hides it from both rankers.
func (s *PassageStore) Add(p domain.Passage, embedding []float32, userID, chunkConfig string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.passages[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.passages[p.ID] = storedPassage{
		passage:     p,
		embedding:   embedding,
		userID:      userID,
		chunkConfig: chunkConfig,
		ready:       ready,
	}
}

// GetPassages fetches passages by id, preserving order and skipping
// unknown ids.
func (s *PassageStore) GetPassages(_ context.Context, ids []string) ([]domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	passages := make([]domain.Passage, 0, len(ids))
	for _, id := range ids {
		if sp, ok := s.passages[id]; ok {
			passages = append(passages, sp.passage)
		}
	}
	return passages, nil
}

// VectorSearch returns the k nearest passages by cosine similarity.
func (s *PassageStore) VectorSearch(_ context.Context, embedding []float32, k int, filter domain.SearchFilter) (domain.RankedList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits domain.RankedList
	for _, id := range s.order {
		sp := s.passages[id]
		if !s.matches(sp, filter) || sp.embedding == nil {
			continue
		}
		hits = append(hits, domain.RankedEntry{
			PassageID: id,
			Score:     cosine(embedding, sp.embedding),
		})
	}
	sortHits(hits)
	return truncate(hits, k), nil
}

// KeywordSearch scores passages by query-term overlap.
func (s *PassageStore) KeywordSearch(_ context.Context, query string, k int, filter domain.SearchFilter) (domain.RankedList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var hits domain.RankedList
	for _, id := range s.order {
		sp := s.passages[id]
		if !s.matches(sp, filter) {
			continue
		}
		content := strings.ToLower(sp.passage.Content)
		score := 0.0
		for _, term := range terms {
			if strings.Contains(content, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, domain.RankedEntry{PassageID: id, Score: score})
		}
	}
	sortHits(hits)
	return truncate(hits, k), nil
}

// SamplePassages returns up to n ready passages owned by the user.
func (s *PassageStore) SamplePassages(_ context.Context, userID string, n int) ([]domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sampled []domain.Passage
	for _, id := range s.order {
		sp := s.passages[id]
		if sp.userID != userID || !sp.ready {
			continue
		}
		sampled = append(sampled, sp.passage)
		if len(sampled) == n {
			break
		}
	}
	return sampled, nil
}

// Close releases nothing for the in-memory store.
func (s *PassageStore) Close() error { return nil }

func (s *PassageStore) matches(sp storedPassage, filter domain.SearchFilter) bool {
	if !sp.ready {
		return false
	}
	if filter.UserID != "" && sp.userID != filter.UserID {
		return false
	}
	if filter.ChunkConfigID != "" && sp.chunkConfig != filter.ChunkConfigID {
		return false
	}
	if len(filter.DocumentIDs) > 0 {
		found := false
		for _, docID := range filter.DocumentIDs {
			if sp.passage.DocumentID == docID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortHits(hits domain.RankedList) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].PassageID < hits[j].PassageID
	})
}

func truncate(hits domain.RankedList, k int) domain.RankedList {
	if k > 0 && len(hits) > k {
		return hits[:k]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
