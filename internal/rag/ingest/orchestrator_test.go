package ingest

import (
	"context"
	"errors"
	"testing"

	"studycore/internal/model"
	"studycore/internal/store"
)

type fakeParser struct {
	doc model.ParsedDocument
	err error
}

func (f fakeParser) Parse(ctx context.Context, pdf []byte, filename string) (model.ParsedDocument, error) {
	return f.doc, f.err
}

type fakeStore struct {
	docID          string
	chunkIDs       []string
	updateErr      error
	linkErr        error
	embeddingCalls int
}

func (f *fakeStore) UpsertDocument(ctx context.Context, filename string) (string, error) {
	return f.docID, nil
}
func (f *fakeStore) InsertIdentityChunk(ctx context.Context, docID, text string, pages []int) (string, error) {
	return "identity-1", nil
}
func (f *fakeStore) InsertChunkBatch(ctx context.Context, docID string, chunks []model.EnrichedChunk) ([]string, error) {
	return f.chunkIDs, nil
}
func (f *fakeStore) UpdateChunksAI(ctx context.Context, updates []store.ChunkAIUpdate) error {
	return f.updateErr
}
func (f *fakeStore) LinkEntityToChunk(ctx context.Context, chunkID string, extracted model.ExtractedEntity) error {
	return f.linkErr
}
func (f *fakeStore) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	f.embeddingCalls++
	return nil
}

type fakeEmbedder struct {
	vectors [][]float32
	err     error
}

func (f fakeEmbedder) EmbedDocuments(ctx context.Context, texts, headingFulls []string) ([][]float32, error) {
	return f.vectors, f.err
}

type passthroughEnricher struct{}

func (passthroughEnricher) Enrich(ctx context.Context, chunks []model.EnrichedChunk) ([]model.EnrichedChunk, error) {
	return chunks, nil
}

type fakeIndexer struct {
	upserts int
	err     error
}

func (f *fakeIndexer) UpsertPoint(ctx context.Context, chunkID, searchableText string, vector []float32, metadata map[string]string) error {
	f.upserts++
	return f.err
}

type fakeIdentityGen struct{}

func (fakeIdentityGen) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	return "", errors.New("no generator in test; falls back to deterministic card")
}

func sampleParsedDocument() model.ParsedDocument {
	return model.ParsedDocument{
		Filename: "bio101.pdf",
		Items: []model.DocItem{
			{Kind: model.ItemHeading, Page: 1, Payload: "# Chapter 1: Cells"},
			{Kind: model.ItemText, Page: 1, Payload: "Cells are the basic unit of life."},
		},
		PageCount: 1,
	}
}

func TestIngestOneHappyPathReachesDone(t *testing.T) {
	st := &fakeStore{docID: "doc-1", chunkIDs: []string{"c1"}}
	idx := &fakeIndexer{}
	o := &Orchestrator{
		Parser:   fakeParser{doc: sampleParsedDocument()},
		Store:    st,
		Enricher: passthroughEnricher{},
		Embedder: fakeEmbedder{vectors: [][]float32{{0.1, 0.2}}},
		Indexer:  idx,
		Uploader: &fakeUploader{},
		Identity: fakeIdentityGen{},
		Config:   Config{ChunkTokenBudget: 1500, SmallSiblingMinTokens: 50, ChunkOverlapTokens: 50},
	}
	res := o.IngestOne(context.Background(), []byte("%PDF-fake"), "bio101.pdf")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Stage != StageDone {
		t.Fatalf("expected StageDone, got %s", res.Stage)
	}
	if res.DocID != "doc-1" {
		t.Fatalf("DocID = %q", res.DocID)
	}
	if res.ChunksCount != 1 {
		t.Fatalf("ChunksCount = %d", res.ChunksCount)
	}
	if st.embeddingCalls != 1 {
		t.Fatalf("expected 1 embedding persisted, got %d", st.embeddingCalls)
	}
	if idx.upserts != 1 {
		t.Fatalf("expected 1 index upsert, got %d", idx.upserts)
	}
}

func TestIngestOneStopsAtParseFailure(t *testing.T) {
	o := &Orchestrator{Parser: fakeParser{err: errors.New("corrupt pdf")}}
	res := o.IngestOne(context.Background(), nil, "broken.pdf")
	if res.Stage != StageFailed {
		t.Fatalf("expected StageFailed, got %s", res.Stage)
	}
	if res.Err == nil {
		t.Fatalf("expected error")
	}
}

func TestIngestOneRowsPersistedBeforeFailureStayCommitted(t *testing.T) {
	st := &fakeStore{docID: "doc-2", chunkIDs: []string{"c1"}}
	o := &Orchestrator{
		Parser:   fakeParser{doc: sampleParsedDocument()},
		Store:    st,
		Enricher: passthroughEnricher{},
		Embedder: fakeEmbedder{err: errors.New("embedding service down")},
		Uploader: &fakeUploader{},
		Identity: fakeIdentityGen{},
		Config:   Config{ChunkTokenBudget: 1500},
	}
	res := o.IngestOne(context.Background(), []byte("%PDF-fake"), "bio101.pdf")
	if res.Stage != StageFailed {
		t.Fatalf("expected StageFailed, got %s", res.Stage)
	}
	if res.DocID != "doc-2" {
		t.Fatalf("expected DocID to remain set from the committed upsert, got %q", res.DocID)
	}
	if res.ChunksCount != 1 {
		t.Fatalf("expected chunk rows already persisted to be reflected, got %d", res.ChunksCount)
	}
}

func TestIngestOneEnricherFailureDegradesWithoutFailingDocument(t *testing.T) {
	st := &fakeStore{docID: "doc-3", chunkIDs: []string{"c1"}}
	idx := &fakeIndexer{}
	o := &Orchestrator{
		Parser:   fakeParser{doc: sampleParsedDocument()},
		Store:    st,
		Enricher: failingEnricher{},
		Embedder: fakeEmbedder{vectors: [][]float32{{0.1}}},
		Indexer:  idx,
		Uploader: &fakeUploader{},
		Identity: fakeIdentityGen{},
		Config:   Config{ChunkTokenBudget: 1500},
	}
	res := o.IngestOne(context.Background(), []byte("%PDF-fake"), "bio101.pdf")
	if res.Stage != StageDone {
		t.Fatalf("expected enrichment failure to degrade gracefully, got stage %s err %v", res.Stage, res.Err)
	}
}

type failingEnricher struct{}

func (failingEnricher) Enrich(ctx context.Context, chunks []model.EnrichedChunk) ([]model.EnrichedChunk, error) {
	return nil, errors.New("enrichment service unavailable")
}
