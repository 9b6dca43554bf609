package retrieve

import (
	"context"
	"testing"

	"studycore/internal/model"
)

type fakeGroupStore struct {
	identities map[string]model.Chunk
	documents  map[string]model.Document
}

func (f fakeGroupStore) FetchChunksByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	return nil, nil
}
func (f fakeGroupStore) FetchIdentitiesByDocIDs(ctx context.Context, docIDs []string) (map[string]model.Chunk, error) {
	return f.identities, nil
}
func (f fakeGroupStore) FetchDocuments(ctx context.Context, docIDs []string) (map[string]model.Document, error) {
	return f.documents, nil
}

func TestGroupByDocumentOrdersDocsByBestScoreDescending(t *testing.T) {
	store := fakeGroupStore{
		identities: map[string]model.Chunk{},
		documents: map[string]model.Document{
			"docA": {ID: "docA", Filename: "a.pdf"},
			"docB": {ID: "docB", Filename: "b.pdf"},
		},
	}
	survivors := []model.RankedChunk{
		{Chunk: model.Chunk{ID: "a1", DocumentID: "docA", ChunkIndex: 0}, RerankScore: 0.2},
		{Chunk: model.Chunk{ID: "b1", DocumentID: "docB", ChunkIndex: 0}, RerankScore: 0.9},
	}
	out, err := GroupByDocument(context.Background(), store, survivors)
	if err != nil {
		t.Fatalf("GroupByDocument error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].Document.ID != "docB" {
		t.Fatalf("expected docB first (higher best score), got %s", out[0].Document.ID)
	}
}

func TestGroupByDocumentPlacesIdentityChunkFirst(t *testing.T) {
	store := fakeGroupStore{
		identities: map[string]model.Chunk{
			"docA": {ID: "ident-a", DocumentID: "docA", IsIdentity: true},
		},
		documents: map[string]model.Document{
			"docA": {ID: "docA", Filename: "a.pdf"},
		},
	}
	survivors := []model.RankedChunk{
		{Chunk: model.Chunk{ID: "a2", DocumentID: "docA", ChunkIndex: 2}, RerankScore: 0.5},
		{Chunk: model.Chunk{ID: "a1", DocumentID: "docA", ChunkIndex: 1}, RerankScore: 0.4},
	}
	out, err := GroupByDocument(context.Background(), store, survivors)
	if err != nil {
		t.Fatalf("GroupByDocument error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected identity + 2 content chunks, got %d", len(out))
	}
	if !out[0].IsIdentity || out[0].Chunk.ID != "ident-a" {
		t.Fatalf("expected identity chunk first, got %+v", out[0])
	}
	if out[1].Chunk.ID != "a1" || out[2].Chunk.ID != "a2" {
		t.Fatalf("expected ascending chunk_index after identity, got %s then %s", out[1].Chunk.ID, out[2].Chunk.ID)
	}
}

func TestGroupByDocumentEmptyInput(t *testing.T) {
	out, err := GroupByDocument(context.Background(), fakeGroupStore{}, nil)
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", out, err)
	}
}
