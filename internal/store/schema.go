// Package store implements the Document Store (C1): durable, transactional
// persistence for documents, chunks, entities, and entity-links.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps the shared connection pool with the relational schema for the
// retrieval core. Connection pooling is internal to the pool passed in.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
}

// New bootstraps the schema (idempotent) and returns a ready Store. dimension
// fixes the width of the chunks.embedding column; it must match the
// embedder's output dimension.
func New(ctx context.Context, pool *pgxpool.Pool, dimension int) (*Store, error) {
	s := &Store{pool: pool, dimension: dimension}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			filename TEXT UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			chunk_id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			chunk_text TEXT NOT NULL,
			chunk_visual_summary TEXT NOT NULL DEFAULT '',
			chunk_headings JSONB NOT NULL DEFAULT '[]'::jsonb,
			chunk_heading_full TEXT NOT NULL DEFAULT '',
			chunk_page_numbers INT[] NOT NULL DEFAULT '{}',
			chunk_tables JSONB NOT NULL DEFAULT '[]'::jsonb,
			chunk_images_urls TEXT[] NOT NULL DEFAULT '{}',
			chunk_type TEXT NOT NULL,
			is_identity BOOLEAN NOT NULL DEFAULT false,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE(doc_id, chunk_index)
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS chunks_doc_idx ON chunks (doc_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_doc_index_idx ON chunks (doc_id, chunk_index)`,
		`CREATE INDEX IF NOT EXISTS chunks_type_idx ON chunks (chunk_type)`,
		`CREATE INDEX IF NOT EXISTS chunks_identity_idx ON chunks (doc_id) WHERE is_identity`,
		`CREATE INDEX IF NOT EXISTS chunks_headings_gin_idx ON chunks USING GIN (chunk_headings)`,
		`CREATE TABLE IF NOT EXISTS entities (
			entity_id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			aliases TEXT[] NOT NULL DEFAULT '{}',
			entity_type TEXT NOT NULL,
			global_summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS entities_aliases_gin_idx ON entities USING GIN (aliases)`,
		`CREATE TABLE IF NOT EXISTS entity_links (
			link_id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL REFERENCES entities(entity_id) ON DELETE CASCADE,
			chunk_id TEXT NOT NULL REFERENCES chunks(chunk_id) ON DELETE CASCADE,
			relevance_score DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			context_description TEXT NOT NULL DEFAULT '',
			UNIQUE(entity_id, chunk_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstWords(stmt, 6), err)
		}
	}
	// HNSW cosine index requires at least one row to size well in some
	// Postgres/pgvector builds; create it best-effort and ignore failures so
	// an empty table never blocks startup.
	_, _ = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS chunks_embedding_hnsw_idx ON chunks USING hnsw (embedding vector_cosine_ops)`)
	return nil
}

func firstWords(s string, n int) string {
	count := 0
	for i, r := range s {
		if r == ' ' {
			count++
			if count == n {
				return s[:i]
			}
		}
	}
	return s
}

func (s *Store) Close() {
	s.pool.Close()
}
