// Package retrieve implements the Query Orchestrator (C7): rewrite the
// question into query variants, fan out dense and lexical search, fuse by
// reciprocal rank, hydrate and rerank the survivors, then group them by
// document for the answer assembler.
package retrieve

import (
	"context"
	"fmt"

	"studycore/internal/index"
	"studycore/internal/model"
	"studycore/internal/rag/obs"
	"studycore/internal/rerank"
)

// PromptStyle selects the answer assembler's system prompt register; C7
// only threads it through to the caller, it has no effect on retrieval.
type PromptStyle string

const (
	StyleLight     PromptStyle = "light"
	StyleVerbose   PromptStyle = "verbose"
	StyleReasoning PromptStyle = "reasoning"
)

// Options configures one query.
type Options struct {
	TopK        int
	TopN        int
	PromptStyle PromptStyle
	DocFilter   string // optional document_id filter, applied to dense search only
}

// Embedder is the C4 capability the orchestrator needs for fan-out.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the narrowed C1 capability needed to hydrate and group results.
type Store interface {
	FetchChunksByIDs(ctx context.Context, ids []string) ([]model.Chunk, error)
	FetchIdentitiesByDocIDs(ctx context.Context, docIDs []string) (map[string]model.Chunk, error)
	FetchDocuments(ctx context.Context, docIDs []string) (map[string]model.Document, error)
}

// Reranker is the narrowed C4 capability used in the rerank step.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []rerank.Passage, topN int, minScore float64) ([]rerank.Scored, error)
}

// Orchestrator drives one query through the full C7 algorithm.
type Orchestrator struct {
	Generator           Rewriter
	Embedder            Embedder
	Dense               index.DenseIndex
	Lexical             index.LexicalIndex
	Store               Store
	Reranker            Reranker
	RRFK0               int
	DenseScoreThreshold float64
	Log                 obs.Logger
	Metrics             obs.Metrics
	Clock               obs.Clock
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

// Result is the query's final, document-grouped context plus the
// standalone query used for reranking and prompting.
type Result struct {
	StandaloneQuery string
	Context         []model.ContextItem
}

// Query runs the full pipeline: rewrite, fan out, fuse, hydrate, rerank,
// group.
func (o *Orchestrator) Query(ctx context.Context, question string, history []Turn, opt Options) (Result, error) {
	start := o.clock().Now()
	topK := opt.TopK
	if topK <= 0 {
		topK = 20
	}

	rw := RewriteQuery(ctx, o.Generator, history, question)

	lists, err := o.fanOut(ctx, rw, topK, opt.DocFilter)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: fan-out: %w", err)
	}

	fused := FuseRRF(lists, o.RRFK0)
	ids := topIDs(fused, topK)

	chunks, err := o.Store.FetchChunksByIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: hydrate: %w", err)
	}

	ranked := attachFusedScores(chunks, fused)

	survivors := o.rerank(ctx, rw.V1, ranked, opt.TopN)

	grouped, err := GroupByDocument(ctx, o.Store, survivors)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: group: %w", err)
	}

	o.metrics().ObserveHistogram("query_duration_ms", float64(o.clock().Now().Sub(start).Milliseconds()), nil)
	o.metrics().IncCounter("query_total", nil)
	o.logger().Info("query complete", map[string]any{"standalone_query": rw.V1, "fused_candidates": len(fused), "survivors": len(survivors), "context_items": len(grouped)})

	return Result{StandaloneQuery: rw.V1, Context: grouped}, nil
}

func topIDs(fused []FusedResult, k int) []string {
	if len(fused) > k {
		fused = fused[:k]
	}
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
	}
	return ids
}

func attachFusedScores(chunks []model.Chunk, fused []FusedResult) []model.RankedChunk {
	scoreByID := make(map[string]float64, len(fused))
	for _, f := range fused {
		scoreByID[f.ID] = f.Score
	}
	out := make([]model.RankedChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, model.RankedChunk{Chunk: c, FusedScore: scoreByID[c.ID]})
	}
	return out
}
