package ingest

import (
	"strings"
	"testing"

	"studycore/internal/model"
)

func TestPageRangeFormatsSingleAndSpan(t *testing.T) {
	if got := pageRange([]int{5}); got != "5" {
		t.Fatalf("pageRange single = %q", got)
	}
	if got := pageRange([]int{3, 1, 7}); got != "1-7" {
		t.Fatalf("pageRange span = %q", got)
	}
	if got := pageRange(nil); got != "?" {
		t.Fatalf("pageRange empty = %q", got)
	}
}

func TestExtractTOCFallsBackToFirstLevelHeadings(t *testing.T) {
	chunks := []model.ProvisionalChunk{
		{Text: "intro text", Headings: []string{"Chapter 1"}, Pages: []int{1, 2}},
		{Text: "more text", Headings: []string{"Chapter 1", "Section A"}, Pages: []int{2}},
		{Text: "closing text", Headings: []string{"Chapter 2"}, Pages: []int{5}},
	}
	toc := extractTOC(chunks)
	if len(toc) != 2 {
		t.Fatalf("got %d toc entries, want 2: %v", len(toc), toc)
	}
	if !strings.Contains(toc[0], "Chapter 1") || !strings.Contains(toc[0], "pp. 1-2") {
		t.Fatalf("toc[0] = %q", toc[0])
	}
}

func TestExtractTOCPrefersLiteralContentsSection(t *testing.T) {
	chunks := []model.ProvisionalChunk{
		{Text: "Table of Contents\nChapter 1 ... 1\nChapter 2 ... 5", Headings: []string{"Front matter"}},
		{Text: "intro text", Headings: []string{"Chapter 1"}},
	}
	toc := extractTOC(chunks)
	if len(toc) == 0 || !strings.Contains(toc[0], "Table of Contents") {
		t.Fatalf("expected literal contents block first, got %v", toc)
	}
}

func TestDeterministicCardIncludesTitleAndTOC(t *testing.T) {
	card := deterministicCard("My Document", []string{"Chapter 1 (pp. 1-2)"})
	if !strings.Contains(card, "TITLE: My Document") {
		t.Fatalf("card missing title: %q", card)
	}
	if !strings.Contains(card, "Chapter 1 (pp. 1-2)") {
		t.Fatalf("card missing toc entry: %q", card)
	}
}

func TestBuildIdentityCardFallsBackWithoutGenerator(t *testing.T) {
	chunks := []model.ProvisionalChunk{{Text: "body", Headings: []string{"Chapter 1"}, Pages: []int{1}}}
	card := BuildIdentityCard(nil, nil, "notes.pdf", chunks)
	if !strings.Contains(card, "TITLE: notes") {
		t.Fatalf("card = %q", card)
	}
}
