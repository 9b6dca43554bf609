package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"studycore/internal/model"
)

// InsertChunkBatch inserts content chunks for a document within a single
// transaction, returning their assigned ids in input order.
func (s *Store) InsertChunkBatch(ctx context.Context, docID string, chunks []model.EnrichedChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin batch insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		id := uuid.NewString()
		headingsJSON, err := json.Marshal(c.Headings)
		if err != nil {
			return nil, fmt.Errorf("store: marshal headings: %w", err)
		}
		tablesJSON, err := json.Marshal(c.Tables)
		if err != nil {
			return nil, fmt.Errorf("store: marshal tables: %w", err)
		}
		chunkType := c.ChunkType
		if chunkType == "" {
			chunkType = model.ChunkContent
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, doc_id, chunk_index, chunk_text, chunk_visual_summary,
                     chunk_headings, chunk_heading_full, chunk_page_numbers, chunk_tables,
                     chunk_images_urls, chunk_type, is_identity)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, id, docID, c.ChunkIndex, c.Text, c.VisualSummary,
			headingsJSON, c.HeadingFull, c.Pages, tablesJSON,
			c.ImagesURLs, string(chunkType), false); err != nil {
			return nil, fmt.Errorf("store: insert chunk %d: %w", i, err)
		}
		ids[i] = id
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit batch insert: %w", err)
	}
	return ids, nil
}

// InsertIdentityChunk persists the one identity card for a document at the
// reserved chunk_index sentinel.
func (s *Store) InsertIdentityChunk(ctx context.Context, docID, text string, pages []int) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
INSERT INTO chunks (chunk_id, doc_id, chunk_index, chunk_text, chunk_page_numbers, chunk_type, is_identity)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, id, docID, model.IdentityChunkIndex, text, pages, string(model.ChunkIdentity), true)
	if err != nil {
		return "", fmt.Errorf("store: insert identity chunk: %w", err)
	}
	return id, nil
}

// ChunkAIUpdate carries the post-enrichment fields C6 produces for one chunk.
type ChunkAIUpdate struct {
	ChunkID       string
	Text          string
	VisualSummary string
}

// UpdateChunksAI applies refined text and visual summaries within a single
// transaction.
func (s *Store) UpdateChunksAI(ctx context.Context, updates []ChunkAIUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin AI update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, u := range updates {
		if _, err := tx.Exec(ctx, `
UPDATE chunks SET chunk_text = $1, chunk_visual_summary = $2 WHERE chunk_id = $3
`, u.Text, u.VisualSummary, u.ChunkID); err != nil {
			return fmt.Errorf("store: update chunk %s: %w", u.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit AI update: %w", err)
	}
	return nil
}

// UpdateChunkEmbedding records a chunk's dense embedding; the dense vector
// itself still lives in C2, this is the data-of-record copy on the chunk row.
func (s *Store) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `UPDATE chunks SET embedding = $1 WHERE chunk_id = $2`, pgvector.NewVector(embedding), chunkID)
	return err
}

func scanChunk(row pgx.Row) (model.Chunk, error) {
	var c model.Chunk
	var headingsJSON, tablesJSON []byte
	var chunkType string
	var embedding *pgvector.Vector
	if err := row.Scan(
		&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.VisualSummary,
		&headingsJSON, &c.HeadingFull, &c.PageNumbers, &tablesJSON,
		&c.ImagesURLs, &chunkType, &c.IsIdentity, &embedding, &c.CreatedAt,
	); err != nil {
		return model.Chunk{}, err
	}
	c.ChunkType = model.ChunkType(chunkType)
	_ = json.Unmarshal(headingsJSON, &c.Headings)
	_ = json.Unmarshal(tablesJSON, &c.Tables)
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return c, nil
}

const chunkColumns = `chunk_id, doc_id, chunk_index, chunk_text, chunk_visual_summary,
       chunk_headings, chunk_heading_full, chunk_page_numbers, chunk_tables,
       chunk_images_urls, chunk_type, is_identity, embedding, created_at`

// FetchChunksByIDs fetches full chunk records for the given ids. Missing ids
// (a stale index pointing at a deleted chunk) are silently dropped.
func (s *Store) FetchChunksByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE chunk_id = ANY($1::text[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: fetch chunks: %w", err)
	}
	defer rows.Close()
	byID := make(map[string]model.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// FetchIdentitiesByDocIDs batch-fetches the one identity chunk per document,
// keyed by doc_id, for the documents that have one.
func (s *Store) FetchIdentitiesByDocIDs(ctx context.Context, docIDs []string) (map[string]model.Chunk, error) {
	if len(docIDs) == 0 {
		return map[string]model.Chunk{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE doc_id = ANY($1::text[]) AND is_identity`, docIDs)
	if err != nil {
		return nil, fmt.Errorf("store: fetch identities: %w", err)
	}
	defer rows.Close()
	out := make(map[string]model.Chunk, len(docIDs))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan identity: %w", err)
		}
		out[c.DocumentID] = c
	}
	return out, rows.Err()
}

// FetchDocuments batch-fetches document rows by id.
func (s *Store) FetchDocuments(ctx context.Context, docIDs []string) (map[string]model.Document, error) {
	if len(docIDs) == 0 {
		return map[string]model.Document{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT doc_id, filename, created_at FROM documents WHERE doc_id = ANY($1::text[])`, docIDs)
	if err != nil {
		return nil, fmt.Errorf("store: fetch documents: %w", err)
	}
	defer rows.Close()
	out := make(map[string]model.Document, len(docIDs))
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.CreatedAt); err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}
