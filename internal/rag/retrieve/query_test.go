package retrieve

import (
	"context"
	"errors"
	"testing"
)

type fakeRewriter struct {
	out string
	err error
}

func (f fakeRewriter) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	return f.out, f.err
}

func TestRewriteQueryParsesAllFields(t *testing.T) {
	gen := fakeRewriter{out: "V1: what is mitosis\nV2: phases of mitosis\nV3: cell division overview\nKEYWORDS: mitosis phase cell division"}
	r := RewriteQuery(context.Background(), gen, nil, "what's mitosis")
	if r.V1 != "what is mitosis" {
		t.Fatalf("V1 = %q", r.V1)
	}
	if len(r.Variants) != 3 {
		t.Fatalf("Variants = %v", r.Variants)
	}
	if r.Variants[0] != r.V1 {
		t.Fatalf("Variants[0] should be V1, got %q", r.Variants[0])
	}
	if r.Keywords != "mitosis phase cell division" {
		t.Fatalf("Keywords = %q", r.Keywords)
	}
}

func TestRewriteQueryFallsBackOnGeneratorError(t *testing.T) {
	gen := fakeRewriter{err: errors.New("boom")}
	r := RewriteQuery(context.Background(), gen, nil, "raw question")
	if r.V1 != "raw question" || len(r.Variants) != 1 || r.Keywords != "raw question" {
		t.Fatalf("r = %+v", r)
	}
}

func TestRewriteQueryFallsBackOnUnparseableResponse(t *testing.T) {
	gen := fakeRewriter{out: "no recognizable fields here"}
	r := RewriteQuery(context.Background(), gen, nil, "raw question")
	if r.V1 != "raw question" {
		t.Fatalf("r = %+v", r)
	}
}

func TestRewriteQueryNilGeneratorFallsBack(t *testing.T) {
	r := RewriteQuery(context.Background(), nil, nil, "raw question")
	if r.V1 != "raw question" {
		t.Fatalf("r = %+v", r)
	}
}

func TestRenderHistoryUsesStudentTeacherPrefixes(t *testing.T) {
	history := []Turn{{Question: "q1", Answer: "a1"}}
	got := renderHistory(history)
	want := "Student: q1\nTeacher: a1\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
