package retrieve

import (
	"context"
	"sort"
	"strings"

	"studycore/internal/model"
	"studycore/internal/rerank"
)

// rerank submits the hydrated, fused chunks to C4.rerank and returns the
// survivors with their rerank score attached, best first. On reranker
// failure it degrades to the original fused order truncated to topN rather
// than failing the query (§7: reranker errors must not fail the request).
func (o *Orchestrator) rerank(ctx context.Context, query string, ranked []model.RankedChunk, topN int) []model.RankedChunk {
	if o.Reranker == nil || len(ranked) == 0 {
		return ranked
	}

	byID := make(map[string]model.RankedChunk, len(ranked))
	passages := make([]rerank.Passage, 0, len(ranked))
	for _, r := range ranked {
		byID[r.Chunk.ID] = r
		passages = append(passages, rerank.Passage{
			ID:              r.Chunk.ID,
			VisualAndTables: visualAndTables(r.Chunk),
			TitleContext:    r.Chunk.HeadingFull,
			RawText:         r.Chunk.Text,
		})
	}

	scored, err := o.Reranker.Rerank(ctx, query, passages, topN, 0)
	if err != nil {
		o.metrics().IncCounter("rerank_fallback_total", nil)
		o.logger().Error("reranker failed, falling back to fused order", map[string]any{"error": err.Error()})
		return fusedFallback(ranked, topN)
	}

	out := make([]model.RankedChunk, 0, len(scored))
	for _, s := range scored {
		r, ok := byID[s.ID]
		if !ok {
			continue
		}
		r.RerankScore = s.Score
		out = append(out, r)
	}
	return out
}

// fusedFallback returns ranked sorted by fused score descending (the
// "original retrieved order"), truncated to topN.
func fusedFallback(ranked []model.RankedChunk, topN int) []model.RankedChunk {
	out := make([]model.RankedChunk, len(ranked))
	copy(out, ranked)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FusedScore > out[j].FusedScore })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func visualAndTables(c model.Chunk) string {
	var parts []string
	if c.VisualSummary != "" {
		parts = append(parts, c.VisualSummary)
	}
	for _, t := range c.Tables {
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n\n")
}
