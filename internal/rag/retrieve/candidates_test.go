package retrieve

import (
	"context"
	"errors"
	"testing"

	"studycore/internal/index"
)

type fakeDense struct {
	hits []index.DenseResult
	err  error
}

func (f fakeDense) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	return nil
}
func (f fakeDense) Delete(ctx context.Context, id string) error { return nil }
func (f fakeDense) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]index.DenseResult, error) {
	return f.hits, f.err
}
func (f fakeDense) Dimension() int { return 4 }
func (f fakeDense) Close() error   { return nil }

type fakeLexical struct {
	hits []index.LexicalResult
	err  error
}

func (f fakeLexical) Index(ctx context.Context, id, text string, metadata map[string]string) error {
	return nil
}
func (f fakeLexical) Delete(ctx context.Context, id string) error { return nil }
func (f fakeLexical) Search(ctx context.Context, query string, k int, filter map[string]string) ([]index.LexicalResult, error) {
	return f.hits, f.err
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func TestFanOutJoinsDenseAndLexicalLists(t *testing.T) {
	o := &Orchestrator{
		Embedder: fakeEmbedder{vec: []float32{0.1, 0.2}},
		Dense:    fakeDense{hits: []index.DenseResult{{ID: "d1", Score: 0.9}, {ID: "d2", Score: 0.8}}},
		Lexical:  fakeLexical{hits: []index.LexicalResult{{ID: "l1", Score: 2}}},
	}
	rw := RewriteResult{V1: "q", Variants: []string{"q"}, Keywords: "q"}
	lists, err := o.fanOut(context.Background(), rw, 10, "")
	if err != nil {
		t.Fatalf("fanOut error: %v", err)
	}
	if len(lists) != 2 {
		t.Fatalf("expected 2 lists (1 variant + lexical), got %d", len(lists))
	}
	if len(lists[0]) != 2 || lists[0][0] != "d1" {
		t.Fatalf("dense list = %v", lists[0])
	}
	if len(lists[1]) != 1 || lists[1][0] != "l1" {
		t.Fatalf("lexical list = %v", lists[1])
	}
}

func TestFanOutDegradesFailingVariantToEmptyList(t *testing.T) {
	o := &Orchestrator{
		Embedder: fakeEmbedder{err: errors.New("embed down")},
		Dense:    fakeDense{},
		Lexical:  fakeLexical{hits: []index.LexicalResult{{ID: "l1"}}},
	}
	rw := RewriteResult{V1: "q", Variants: []string{"q"}, Keywords: "q"}
	lists, err := o.fanOut(context.Background(), rw, 10, "")
	if err != nil {
		t.Fatalf("fanOut should never fail outright: %v", err)
	}
	if len(lists[0]) != 0 {
		t.Fatalf("expected empty dense list on embed failure, got %v", lists[0])
	}
	if len(lists[1]) != 1 {
		t.Fatalf("lexical list should survive: %v", lists[1])
	}
}

func TestFanOutAppliesDenseScoreThreshold(t *testing.T) {
	o := &Orchestrator{
		Embedder: fakeEmbedder{vec: []float32{0.1}},
		Dense: fakeDense{hits: []index.DenseResult{
			{ID: "strong", Score: 0.9},
			{ID: "weak", Score: 0.1},
		}},
		Lexical:             fakeLexical{},
		DenseScoreThreshold: 0.5,
	}
	rw := RewriteResult{V1: "q", Variants: []string{"q"}, Keywords: "q"}
	lists, err := o.fanOut(context.Background(), rw, 10, "")
	if err != nil {
		t.Fatalf("fanOut error: %v", err)
	}
	if len(lists[0]) != 1 || lists[0][0] != "strong" {
		t.Fatalf("expected only the strong hit to survive threshold, got %v", lists[0])
	}
}
