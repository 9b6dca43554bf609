package retrieve

import (
	"context"
	"errors"
	"testing"

	"studycore/internal/model"
	"studycore/internal/rerank"
)

type fakeReranker struct {
	scored []rerank.Scored
	err    error
}

func (f fakeReranker) Rerank(ctx context.Context, query string, passages []rerank.Passage, topN int, minScore float64) ([]rerank.Scored, error) {
	return f.scored, f.err
}

func TestRerankAttachesScoresAndDropsUnscored(t *testing.T) {
	o := &Orchestrator{Reranker: fakeReranker{scored: []rerank.Scored{{ID: "a", Score: 0.8}}}}
	ranked := []model.RankedChunk{
		{Chunk: model.Chunk{ID: "a"}},
		{Chunk: model.Chunk{ID: "b"}},
	}
	out := o.rerank(context.Background(), "query", ranked, 8)
	if len(out) != 1 || out[0].Chunk.ID != "a" || out[0].RerankScore != 0.8 {
		t.Fatalf("out = %+v", out)
	}
}

func TestRerankPassthroughWhenNoReranker(t *testing.T) {
	o := &Orchestrator{}
	ranked := []model.RankedChunk{{Chunk: model.Chunk{ID: "a"}}}
	out := o.rerank(context.Background(), "query", ranked, 8)
	if len(out) != 1 || out[0].Chunk.ID != "a" {
		t.Fatalf("out = %+v", out)
	}
}

func TestRerankFallsBackToFusedOrderOnError(t *testing.T) {
	o := &Orchestrator{Reranker: fakeReranker{err: errors.New("reranker unavailable")}}
	ranked := []model.RankedChunk{
		{Chunk: model.Chunk{ID: "a"}, FusedScore: 0.2},
		{Chunk: model.Chunk{ID: "b"}, FusedScore: 0.9},
		{Chunk: model.Chunk{ID: "c"}, FusedScore: 0.5},
	}
	out := o.rerank(context.Background(), "query", ranked, 2)
	if len(out) != 2 || out[0].Chunk.ID != "b" || out[1].Chunk.ID != "c" {
		t.Fatalf("out = %+v", out)
	}
}

func TestVisualAndTablesJoinsSummaryAndTables(t *testing.T) {
	c := model.Chunk{VisualSummary: "a picture of a cell", Tables: []string{"| h | h2 |"}}
	got := visualAndTables(c)
	if got != "a picture of a cell\n\n| h | h2 |" {
		t.Fatalf("got %q", got)
	}
}
