package retrieve

import (
	"context"
	"sort"

	"studycore/internal/model"
)

// GroupByDocument implements step 6: for each surviving chunk, note its
// document and best rerank score, sort documents by that score descending,
// then within each document emit its identity chunk first (fetched once in
// batch) followed by its surviving content chunks ordered by ascending
// chunk_index.
func GroupByDocument(ctx context.Context, store Store, survivors []model.RankedChunk) ([]model.ContextItem, error) {
	if len(survivors) == 0 {
		return nil, nil
	}

	byDoc := map[string][]model.RankedChunk{}
	bestScore := map[string]float64{}
	var docOrder []string
	for _, s := range survivors {
		docID := s.Chunk.DocumentID
		if _, seen := bestScore[docID]; !seen {
			docOrder = append(docOrder, docID)
		}
		byDoc[docID] = append(byDoc[docID], s)
		if s.RerankScore > bestScore[docID] {
			bestScore[docID] = s.RerankScore
		}
	}
	sort.SliceStable(docOrder, func(i, j int) bool { return bestScore[docOrder[i]] > bestScore[docOrder[j]] })

	identities, err := store.FetchIdentitiesByDocIDs(ctx, docOrder)
	if err != nil {
		return nil, err
	}
	docs, err := store.FetchDocuments(ctx, docOrder)
	if err != nil {
		return nil, err
	}

	var out []model.ContextItem
	for _, docID := range docOrder {
		doc := docs[docID]
		if identity, ok := identities[docID]; ok {
			out = append(out, model.ContextItem{Chunk: identity, Document: doc, IsIdentity: true})
		}
		chunks := byDoc[docID]
		sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Chunk.ChunkIndex < chunks[j].Chunk.ChunkIndex })
		for _, c := range chunks {
			out = append(out, model.ContextItem{Chunk: c.Chunk, Document: doc, RerankScore: c.RerankScore})
		}
	}
	return out, nil
}
