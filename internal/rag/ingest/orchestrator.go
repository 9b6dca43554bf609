// Package ingest implements the Ingestion Orchestrator (C5): the state
// machine that drives one PDF through parsing, chunking, identity-card
// generation, structural and AI enrichment, persistence, and indexing.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"studycore/internal/model"
	"studycore/internal/rag/chunker"
	"studycore/internal/rag/obs"
	"studycore/internal/store"
)

// Stage names the ingestion state machine's states; FAILED is terminal for
// the attempt but never rolls back rows already committed by an earlier
// persistence step.
type Stage string

const (
	StageReceived  Stage = "RECEIVED"
	StageParsed    Stage = "PARSED"
	StageChunked   Stage = "CHUNKED"
	StageIdentified Stage = "IDENTIFIED"
	StageEnriched  Stage = "ENRICHED"
	StagePersisted Stage = "PERSISTED"
	StageSummarized Stage = "SUMMARIZED"
	StageVectorized Stage = "VECTORIZED"
	StageIndexed   Stage = "INDEXED"
	StageDone      Stage = "DONE"
	StageFailed    Stage = "FAILED"
)

// Store is the C1 capability the orchestrator needs.
type Store interface {
	UpsertDocument(ctx context.Context, filename string) (string, error)
	InsertIdentityChunk(ctx context.Context, docID, text string, pages []int) (string, error)
	InsertChunkBatch(ctx context.Context, docID string, chunks []model.EnrichedChunk) ([]string, error)
	UpdateChunksAI(ctx context.Context, updates []store.ChunkAIUpdate) error
	LinkEntityToChunk(ctx context.Context, chunkID string, extracted model.ExtractedEntity) error
	UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error
}

// Embedder is the C4 embedding capability.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts, headingFulls []string) ([][]float32, error)
}

// Enricher is the C6 capability.
type Enricher interface {
	Enrich(ctx context.Context, chunks []model.EnrichedChunk) ([]model.EnrichedChunk, error)
}

// Indexer is the C2 capability, narrowed to upsert.
type Indexer interface {
	UpsertPoint(ctx context.Context, chunkID, searchableText string, vector []float32, metadata map[string]string) error
}

// Config bounds the chunker and splitter steps.
type Config struct {
	ChunkTokenBudget      int
	SmallSiblingMinTokens int
	ChunkOverlapTokens    int
}

// Orchestrator drives one document through the full C5 state machine.
type Orchestrator struct {
	Parser   model.Parser
	Store    Store
	Enricher Enricher
	Embedder Embedder
	Indexer  Indexer
	Uploader imageUploader
	Identity identityGenerator
	Config   Config
	Log      obs.Logger
	Metrics  obs.Metrics
	Clock    obs.Clock
}

func (o *Orchestrator) logger() obs.Logger {
	if o.Log != nil {
		return o.Log
	}
	return obs.NoopLogger{}
}

func (o *Orchestrator) metrics() obs.Metrics {
	if o.Metrics != nil {
		return o.Metrics
	}
	return obs.NoopMetrics{}
}

func (o *Orchestrator) clock() obs.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return obs.SystemClock{}
}

// Result summarizes one document's ingestion outcome.
type Result struct {
	DocID      string
	Filename   string
	Stage      Stage
	ChunkIDs   []string
	ChunksCount int
	Err        error
}

// IngestOne runs a single PDF through the full pipeline. It never panics on
// a per-document error; the returned Result carries the stage reached and
// the error, and rows persisted before the failure remain in place.
func (o *Orchestrator) IngestOne(ctx context.Context, pdf []byte, filename string) Result {
	res := Result{Filename: filename, Stage: StageReceived}
	start := o.clock().Now()
	defer func() {
		dur := o.clock().Now().Sub(start)
		o.metrics().ObserveHistogram("ingest_duration_ms", float64(dur.Milliseconds()), map[string]string{"stage": string(res.Stage)})
		if res.Err != nil {
			o.metrics().IncCounter("ingest_documents_failed_total", map[string]string{"stage": string(res.Stage)})
			o.logger().Error("ingest failed", map[string]any{"filename": filename, "stage": string(res.Stage), "error": res.Err.Error()})
			return
		}
		o.metrics().IncCounter("ingest_documents_total", nil)
		o.logger().Info("ingest complete", map[string]any{"filename": filename, "doc_id": res.DocID, "chunks": res.ChunksCount, "duration_ms": dur.Milliseconds()})
	}()

	parsed, err := o.Parser.Parse(ctx, pdf, filename)
	if err != nil {
		return res.fail(StageParsed, fmt.Errorf("parse: %w", err))
	}
	res.Stage = StageParsed

	provisional := chunker.Chunk(parsed.Items, chunker.Options{
		TokenBudget:           o.Config.ChunkTokenBudget,
		SmallSiblingMinTokens: o.Config.SmallSiblingMinTokens,
	})
	res.Stage = StageChunked

	identityCard := BuildIdentityCard(ctx, o.Identity, filename, provisional)
	res.Stage = StageIdentified

	enriched := StructuralEnrich(ctx, parsed.Items, provisional, o.Uploader)
	sizeChars := o.Config.ChunkTokenBudget * 3
	if sizeChars <= 0 {
		sizeChars = 4500
	}
	enriched = SplitOverlong(enriched, sizeChars, o.Config.ChunkOverlapTokens*3)
	res.Stage = StageEnriched

	docID, err := o.Store.UpsertDocument(ctx, filename)
	if err != nil {
		return res.fail(StagePersisted, fmt.Errorf("upsert document: %w", err))
	}
	res.DocID = docID

	identityPages := spanPages(parsed.Items)
	if _, err := o.Store.InsertIdentityChunk(ctx, docID, identityCard, identityPages); err != nil {
		return res.fail(StagePersisted, fmt.Errorf("insert identity chunk: %w", err))
	}

	ids, err := o.Store.InsertChunkBatch(ctx, docID, enriched)
	if err != nil {
		return res.fail(StagePersisted, fmt.Errorf("insert chunk batch: %w", err))
	}
	res.Stage = StagePersisted
	res.ChunkIDs = ids
	res.ChunksCount = len(ids)

	aiEnriched, err := o.Enricher.Enrich(ctx, enriched)
	if err != nil {
		// C6 degrades per-chunk internally; a returned error here means the
		// whole batch could not be attempted, not that any one chunk failed.
		aiEnriched = enriched
	}

	updates := make([]store.ChunkAIUpdate, 0, len(ids))
	for i, id := range ids {
		if i >= len(aiEnriched) {
			break
		}
		updates = append(updates, store.ChunkAIUpdate{
			ChunkID:       id,
			Text:          aiEnriched[i].Text,
			VisualSummary: aiEnriched[i].VisualSummary,
		})
	}
	if err := o.Store.UpdateChunksAI(ctx, updates); err != nil {
		return res.fail(StageSummarized, fmt.Errorf("update chunks ai: %w", err))
	}
	for i, id := range ids {
		if i >= len(aiEnriched) {
			continue
		}
		for _, e := range aiEnriched[i].Entities {
			if err := o.Store.LinkEntityToChunk(ctx, id, e); err != nil {
				continue // one entity's link failure does not fail the document
			}
		}
	}
	res.Stage = StageSummarized

	texts := make([]string, len(aiEnriched))
	for i, c := range aiEnriched {
		texts[i] = embeddingText(c)
	}
	// embeddingText already applies the "# <heading_full>\n\n" prefix per
	// §4.4, so no headingFulls are passed here: the client must not prepend
	// a second time.
	vectors, err := o.Embedder.EmbedDocuments(ctx, texts, nil)
	if err != nil {
		return res.fail(StageVectorized, fmt.Errorf("embed chunks: %w", err))
	}
	for i, id := range ids {
		if i >= len(vectors) {
			break
		}
		if err := o.Store.UpdateChunkEmbedding(ctx, id, vectors[i]); err != nil {
			return res.fail(StageVectorized, fmt.Errorf("persist embedding: %w", err))
		}
	}
	res.Stage = StageVectorized

	for i, id := range ids {
		if i >= len(vectors) || i >= len(aiEnriched) {
			break
		}
		searchable := searchableText(aiEnriched[i])
		md := map[string]string{"doc_id": docID}
		if err := o.Indexer.UpsertPoint(ctx, id, searchable, vectors[i], md); err != nil {
			return res.fail(StageIndexed, fmt.Errorf("index chunk %s: %w", id, err))
		}
	}
	res.Stage = StageDone
	return res
}

func (r Result) fail(stage Stage, err error) Result {
	r.Stage = StageFailed
	r.Err = fmt.Errorf("%s: %w", stage, err)
	return r
}

// embeddingText builds the per-chunk embedding input: "# <heading_full>\n\n"
// + text when a real heading exists, plus visual_summary when non-empty.
func embeddingText(c model.EnrichedChunk) string {
	var b strings.Builder
	if c.HeadingFull != "" && c.HeadingFull != "General section" {
		b.WriteString("# " + c.HeadingFull + "\n\n")
	}
	b.WriteString(c.Text)
	if c.VisualSummary != "" {
		b.WriteString("\n\n" + c.VisualSummary)
	}
	return b.String()
}

// searchableText builds C2's payload text: heading_full + text + visual
// summary, concatenated for both the dense payload and the lexical index.
func searchableText(c model.EnrichedChunk) string {
	parts := []string{c.HeadingFull, c.Text, c.VisualSummary}
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func spanPages(items []model.DocItem) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, it := range items {
		if _, ok := seen[it.Page]; ok {
			continue
		}
		seen[it.Page] = struct{}{}
		out = append(out, it.Page)
	}
	return out
}
