package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// PassageStore implements driven.PassageStore over SQLite: keyword
// search through an FTS5 index, vector search by scanning stored
// embeddings. It also exposes the ingestion-side Save methods used to
// load a corpus.
type PassageStore struct {
	store *Store
}

var _ driven.PassageStore = (*PassageStore)(nil)

// SaveDocument stores or updates a document record.
func (s *PassageStore) SaveDocument(ctx context.Context, id, userID, name, status string) error {
	if status == "" {
		status = "ready"
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, name, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			status = excluded.status
	`, id, userID, name, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SavePassages stores passages with their embeddings in one transaction.
func (s *PassageStore) SavePassages(ctx context.Context, passages []domain.Passage, embeddings [][]float32, chunkConfigID string) error {
	if len(embeddings) != 0 && len(embeddings) != len(passages) {
		return fmt.Errorf("%w: %d embeddings for %d passages", domain.ErrInvalidInput, len(embeddings), len(passages))
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (id, document_id, chunk_config_id, content, page_numbers, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_config_id = excluded.chunk_config_id,
			content = excluded.content,
			page_numbers = excluded.page_numbers,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, p := range passages {
		pagesJSON, err := json.Marshal(p.PageNumbers)
		if err != nil {
			return fmt.Errorf("marshalling page numbers: %w", err)
		}
		var blob []byte
		if len(embeddings) != 0 {
			blob = float32SliceToBytes(embeddings[i])
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.DocumentID, chunkConfigID,
			p.Content, string(pagesJSON), blob); err != nil {
			return fmt.Errorf("saving passage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetPassages resolves passage ids, preserving input order. Unknown ids
// are skipped.
func (s *PassageStore) GetPassages(ctx context.Context, ids []string) ([]domain.Passage, error) {
	if len(ids) == 0 {
		return []domain.Passage{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT p.id, p.document_id, d.name, p.content, p.page_numbers
		FROM passages p
		JOIN documents d ON d.id = p.document_id
		WHERE p.id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Passage, len(ids))
	for rows.Next() {
		var p domain.Passage
		var pagesJSON sql.NullString
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.DocumentName, &p.Content, &pagesJSON); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		if pagesJSON.Valid && pagesJSON.String != "" && pagesJSON.String != "null" {
			if err := json.Unmarshal([]byte(pagesJSON.String), &p.PageNumbers); err != nil {
				return nil, fmt.Errorf("unmarshalling page numbers: %w", err)
			}
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}

	passages := make([]domain.Passage, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			passages = append(passages, p)
		}
	}
	return passages, nil
}

// VectorSearch returns the k nearest passages by cosine similarity.
// Embeddings are scanned in Go; an approximate index is unnecessary at
// single-tenant corpus sizes.
func (s *PassageStore) VectorSearch(ctx context.Context, embedding []float32, k int, filter domain.SearchFilter) (domain.RankedList, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}

	query, args := filteredQuery(`
		SELECT p.id, p.embedding
		FROM passages p
		JOIN documents d ON d.id = p.document_id
		WHERE d.status = 'ready' AND p.embedding IS NOT NULL`, filter)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits domain.RankedList
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		stored := bytesToFloat32Slice(blob)
		if len(stored) != len(embedding) {
			continue
		}
		hits = append(hits, domain.RankedEntry{PassageID: id, Score: cosine(embedding, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].PassageID < hits[j].PassageID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// KeywordSearch returns the k best passages by BM25 over the FTS5
// index. Scores are negated bm25() so that higher means better.
func (s *PassageStore) KeywordSearch(ctx context.Context, query string, k int, filter domain.SearchFilter) (domain.RankedList, error) {
	match := ftsQuery(query)
	if match == "" || k <= 0 {
		return nil, nil
	}

	sqlQuery, args := filteredQuery(`
		SELECT p.id, -bm25(passages_fts) AS score
		FROM passages_fts
		JOIN passages p ON p.rowid = passages_fts.rowid
		JOIN documents d ON d.id = p.document_id
		WHERE passages_fts MATCH ? AND d.status = 'ready'`, filter)
	args = append([]any{match}, args...)
	sqlQuery += " ORDER BY bm25(passages_fts) LIMIT ?"
	args = append(args, k)

	rows, err := s.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits domain.RankedList
	for rows.Next() {
		var entry domain.RankedEntry
		if err := rows.Scan(&entry.PassageID, &entry.Score); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		hits = append(hits, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword hits: %w", err)
	}
	return hits, nil
}

// SamplePassages returns up to n random ready passages owned by the user.
func (s *PassageStore) SamplePassages(ctx context.Context, userID string, n int) ([]domain.Passage, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT p.id, p.document_id, d.name, p.content, p.page_numbers
		FROM passages p
		JOIN documents d ON d.id = p.document_id
		WHERE d.user_id = ? AND d.status = 'ready'
		ORDER BY RANDOM()
		LIMIT ?
	`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("sampling passages: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage //nolint:prealloc // size unknown from query
	for rows.Next() {
		var p domain.Passage
		var pagesJSON sql.NullString
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.DocumentName, &p.Content, &pagesJSON); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		if pagesJSON.Valid && pagesJSON.String != "" && pagesJSON.String != "null" {
			if err := json.Unmarshal([]byte(pagesJSON.String), &p.PageNumbers); err != nil {
				return nil, fmt.Errorf("unmarshalling page numbers: %w", err)
			}
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}
	return passages, nil
}

// Close is a no-op; the owning Store manages the connection.
func (s *PassageStore) Close() error { return nil }

// filteredQuery appends the search filter conditions to a base query.
func filteredQuery(base string, filter domain.SearchFilter) (string, []any) {
	var args []any
	if filter.UserID != "" {
		base += " AND d.user_id = ?"
		args = append(args, filter.UserID)
	}
	base += " AND p.chunk_config_id = ?"
	args = append(args, filter.ChunkConfigID)
	if len(filter.DocumentIDs) > 0 {
		base += " AND p.document_id IN (" + strings.Repeat("?,", len(filter.DocumentIDs)-1) + "?)"
		for _, id := range filter.DocumentIDs {
			args = append(args, id)
		}
	}
	return base, args
}

// ftsQuery converts free text into an FTS5 match expression: each term
// quoted so user input cannot inject FTS syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func cosine(a, b []float32) float64 {
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
