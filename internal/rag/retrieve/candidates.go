package retrieve

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut implements step 2: embed each query variant and dense-search it,
// and lexical-search the keywords string, all concurrently; join before
// returning. A doc filter, when present, restricts dense search only —
// lexical search stays recall-oriented and unfiltered.
func (o *Orchestrator) fanOut(ctx context.Context, rw RewriteResult, topK int, docFilter string) ([]RankedList, error) {
	lists := make([]RankedList, len(rw.Variants)+1)

	g, gctx := errgroup.WithContext(ctx)

	for i, variant := range rw.Variants {
		i, variant := i, variant
		g.Go(func() error {
			vec, err := o.Embedder.EmbedQuery(gctx, variant)
			if err != nil {
				return nil // one variant's embedding failure just empties its list
			}
			var filter map[string]string
			if docFilter != "" {
				filter = map[string]string{"doc_id": docFilter}
			}
			hits, err := o.Dense.SimilaritySearch(gctx, vec, topK, filter)
			if err != nil {
				return nil
			}
			ids := make([]string, 0, len(hits))
			for _, h := range hits {
				if o.DenseScoreThreshold > 0 && h.Score < o.DenseScoreThreshold {
					continue
				}
				ids = append(ids, h.ID)
			}
			lists[i] = ids
			return nil
		})
	}

	lexIdx := len(rw.Variants)
	g.Go(func() error {
		hits, err := o.Lexical.Search(gctx, rw.Keywords, topK, nil)
		if err != nil {
			return nil
		}
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		lists[lexIdx] = ids
		return nil
	})

	_ = g.Wait() // per-source failures degrade that source's list to empty, never abort the query
	return lists, nil
}
