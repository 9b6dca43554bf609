// Package index implements the vector index (C2): a hybrid dense+lexical
// retrieval backend addressed through a single logical chunk collection.
package index

import "context"

// DenseResult is a single nearest-neighbor hit from the dense vector backend.
type DenseResult struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// LexicalResult is a single hit from the lexical (token-overlap) backend.
type LexicalResult struct {
	ID       string
	Score    float64
	Snippet  string
	Metadata map[string]string
}

// DenseIndex is the dense-vector half of the hybrid index.
type DenseIndex interface {
	// Upsert writes a point, idempotently replacing any prior vector stored
	// under the same id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	// SimilaritySearch returns the k nearest points to vector, optionally
	// restricted by an equality filter (e.g. doc_id).
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]DenseResult, error)
	Dimension() int
	Close() error
}

// LexicalIndex is the sparse/token half of the hybrid index.
type LexicalIndex interface {
	Index(ctx context.Context, id, text string, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	// Search runs a disjunctive (OR) match over the folded tokens of query,
	// scoring by overlap count, optionally filtered by metadata equality.
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]LexicalResult, error)
}

// Hybrid bundles both halves of the index behind the single logical
// collection the query pipeline addresses.
type Hybrid struct {
	Dense    DenseIndex
	Lexical  LexicalIndex
}

func (h *Hybrid) Close() error {
	if h.Dense != nil {
		return h.Dense.Close()
	}
	return nil
}

// UpsertPoint writes one point into both halves of the index: the dense
// vector under id, and the same searchableText (payload concatenation of
// heading_full + text + visual_summary) tokenized into the lexical half.
func (h *Hybrid) UpsertPoint(ctx context.Context, id, searchableText string, vector []float32, metadata map[string]string) error {
	if h.Dense != nil {
		if err := h.Dense.Upsert(ctx, id, vector, metadata); err != nil {
			return err
		}
	}
	if h.Lexical != nil {
		if err := h.Lexical.Index(ctx, id, searchableText, metadata); err != nil {
			return err
		}
	}
	return nil
}
