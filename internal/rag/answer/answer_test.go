package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studycore/internal/generator"
	"studycore/internal/model"
)

type fakeGenerator struct {
	lastSystem string
	lastUser   string
	lastImages []generator.ImageRef
	out        string
	err        error
}

func (f *fakeGenerator) CompleteMultimodal(ctx context.Context, system, user string, images []generator.ImageRef, temperature float64, maxTokens int) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	f.lastImages = images
	return f.out, f.err
}

func sampleContext() []model.ContextItem {
	return []model.ContextItem{
		{
			Chunk: model.Chunk{
				ID:          "c1",
				Text:        "Mitosis has four phases.",
				PageNumbers: []int{3, 4},
				Tables:      []string{"| phase | duration |"},
				ImagesURLs:  []string{"https://x/cell.png"},
			},
		},
	}
}

func TestAnswerReturnsGeneratorOutputOnSuccess(t *testing.T) {
	gen := &fakeGenerator{out: "Mitosis proceeds through four phases."}
	a := NewAssembler(gen)
	got := a.Answer(context.Background(), "what is mitosis", sampleContext(), nil, StyleLight)
	if got != "Mitosis proceeds through four phases." {
		t.Fatalf("got %q", got)
	}
}

func TestAnswerReturnsApologyOnGeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("503")}
	a := NewAssembler(gen)
	got := a.Answer(context.Background(), "what is mitosis", sampleContext(), nil, StyleLight)
	if got != apology {
		t.Fatalf("expected fixed apology, got %q", got)
	}
}

func TestAnswerPromptIncludesKnowledgeBlockAndTable(t *testing.T) {
	gen := &fakeGenerator{out: "ok"}
	a := NewAssembler(gen)
	a.Answer(context.Background(), "what is mitosis", sampleContext(), nil, StyleLight)
	if !strings.Contains(gen.lastUser, "[KNOWLEDGE #1 | Page(s): 3, 4]") {
		t.Fatalf("user prompt missing knowledge block: %q", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "[VISUAL AND TABLE CONTENT]\n| phase | duration |") {
		t.Fatalf("user prompt missing table data: %q", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "[RAW TEXT]\nMitosis has four phases.") {
		t.Fatalf("user prompt missing raw text section: %q", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "Question: what is mitosis") {
		t.Fatalf("user prompt missing question: %q", gen.lastUser)
	}
}

func TestAnswerKnowledgeBlockMatchesRerankerRendering(t *testing.T) {
	gen := &fakeGenerator{out: "ok"}
	a := NewAssembler(gen)
	items := []model.ContextItem{{Chunk: model.Chunk{
		Text:          "Mitosis has four phases.",
		VisualSummary: "a diagram of a dividing cell",
		HeadingFull:   "Biology > Cell Division",
		Tables:        []string{"| phase | duration |"},
	}}}
	a.Answer(context.Background(), "q", items, nil, StyleLight)
	want := "[VISUAL AND TABLE CONTENT]\na diagram of a dividing cell\n\n| phase | duration |\n\n" +
		"[TITLE/CONTEXT]\nBiology > Cell Division\n\n[RAW TEXT]\nMitosis has four phases."
	if !strings.Contains(gen.lastUser, want) {
		t.Fatalf("expected reranker-format knowledge block, got: %q", gen.lastUser)
	}
}

func TestAnswerDedupsImagesAcrossChunks(t *testing.T) {
	gen := &fakeGenerator{out: "ok"}
	a := NewAssembler(gen)
	items := []model.ContextItem{
		{Chunk: model.Chunk{ImagesURLs: []string{"https://x/a.png", "https://x/b.png"}}},
		{Chunk: model.Chunk{ImagesURLs: []string{"https://x/a.png"}}},
	}
	a.Answer(context.Background(), "q", items, nil, StyleLight)
	if len(gen.lastImages) != 2 {
		t.Fatalf("expected 2 deduped images, got %d: %v", len(gen.lastImages), gen.lastImages)
	}
}

func TestAnswerRendersHistoryWithStudentTeacherPrefixes(t *testing.T) {
	gen := &fakeGenerator{out: "ok"}
	a := NewAssembler(gen)
	history := []Turn{{Question: "q1", Answer: "a1"}}
	a.Answer(context.Background(), "q2", nil, history, StyleLight)
	if !strings.Contains(gen.lastUser, "Student: q1\nTeacher: a1\n") {
		t.Fatalf("history not rendered: %q", gen.lastUser)
	}
}

func TestAnswerTruncatesHistoryToLimit(t *testing.T) {
	gen := &fakeGenerator{out: "ok"}
	a := NewAssembler(gen)
	a.HistoryLimit = 1
	history := []Turn{{Question: "old", Answer: "old-a"}, {Question: "recent", Answer: "recent-a"}}
	a.Answer(context.Background(), "q", nil, history, StyleLight)
	if strings.Contains(gen.lastUser, "old") {
		t.Fatalf("expected older turn trimmed past history limit: %q", gen.lastUser)
	}
	if !strings.Contains(gen.lastUser, "recent") {
		t.Fatalf("expected most recent turn kept: %q", gen.lastUser)
	}
}

func TestSystemPromptVariesByStyle(t *testing.T) {
	if systemPrompt(StyleLight) == systemPrompt(StyleVerbose) {
		t.Fatalf("expected light and verbose system prompts to differ")
	}
	if !strings.Contains(systemPrompt(StyleReasoning), "Reasoning:") {
		t.Fatalf("expected reasoning style to require a reasoning block")
	}
}
