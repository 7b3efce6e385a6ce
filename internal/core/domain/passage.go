package domain

// Passage represents a retrievable unit of document text.
// Passages are produced by the ingestion pipeline and owned by the
// document store; the retrieval core holds references plus transient
// scores assigned during ranking.
type Passage struct {
	// ID is the stable identifier for the passage.
	ID string

	// DocumentID links to the owning document.
	DocumentID string

	// DocumentName is the display name of the owning document.
	DocumentName string

	// Content is the passage text.
	Content string

	// PageNumbers lists the source pages this passage spans, if known.
	PageNumbers []int

	// Score is the transient relevance score. It is zero until a ranker
	// or the fusion step assigns one; it is never persisted.
	Score float64
}

// RankedEntry is one row of a RankedList.
type RankedEntry struct {
	// PassageID identifies the ranked passage.
	PassageID string

	// Score is the ranker's native score (cosine similarity, BM25, ...).
	Score float64
}

// RankedList is an ordered result list from a single ranker.
// Rank order is positional: index 0 holds rank 1.
type RankedList []RankedEntry

// FusedEntry is one row of a FusedResult.
type FusedEntry struct {
	// PassageID identifies the passage.
	PassageID string

	// Score is the weighted reciprocal-rank-fusion score.
	Score float64
}

// FusedResult is the ordered, deduplicated output of rank fusion.
// It is created per query or sub-query, consumed immediately, and
// never persisted by the core.
type FusedResult []FusedEntry

// SearchFilter scopes a retrieval call. Adapters must already exclude
// passages from documents that are not in status "ready" or that fall
// outside the requesting user's ownership.
type SearchFilter struct {
	// UserID scopes results to documents owned by this user.
	UserID string

	// DocumentIDs optionally restricts the search to specific documents.
	DocumentIDs []string

	// ChunkConfigID optionally selects an alternative chunk configuration
	// of the same corpus (used by evaluation runs comparing chunkers).
	ChunkConfigID string
}
