package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertDocument returns the doc_id for filename, creating the row on first
// ingest. Re-ingesting the same filename reuses the existing doc_id; see the
// open question in the design notes about wipe-vs-append semantics — this
// core preserves reuse, matching the source contract.
func (s *Store) UpsertDocument(ctx context.Context, filename string) (string, error) {
	var docID string
	err := s.pool.QueryRow(ctx, `SELECT doc_id FROM documents WHERE filename = $1`, filename).Scan(&docID)
	if err == nil {
		return docID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("store: lookup document: %w", err)
	}
	docID = uuid.NewString()
	_, err = s.pool.Exec(ctx, `
INSERT INTO documents (doc_id, filename) VALUES ($1, $2)
ON CONFLICT (filename) DO NOTHING
`, docID, filename)
	if err != nil {
		return "", fmt.Errorf("store: insert document: %w", err)
	}
	// Another concurrent ingest may have won the race; re-read to return the
	// row that actually exists.
	if err := s.pool.QueryRow(ctx, `SELECT doc_id FROM documents WHERE filename = $1`, filename).Scan(&docID); err != nil {
		return "", fmt.Errorf("store: reload document: %w", err)
	}
	return docID, nil
}

// DeleteDocument cascades to the document's chunks and entity-links.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, docID)
	return err
}
