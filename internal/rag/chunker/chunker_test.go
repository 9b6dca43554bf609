package chunker

import (
	"strings"
	"testing"

	"studycore/internal/model"
)

func heading(page int, text string) model.DocItem {
	return model.DocItem{Kind: model.ItemHeading, Page: page, Payload: text}
}

func text(page int, body string) model.DocItem {
	return model.DocItem{Kind: model.ItemText, Page: page, Payload: body}
}

func TestChunkGroupsTextUnderHeading(t *testing.T) {
	items := []model.DocItem{
		heading(0, "Introduction"),
		text(0, "First paragraph."),
		text(0, "Second paragraph."),
		heading(1, "## Background"),
		text(1, "Third paragraph."),
	}
	chunks := Chunk(items, Options{TokenBudget: 1500, SmallSiblingMinTokens: 1})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if chunks[0].Headings[0] != "Introduction" {
		t.Fatalf("headings[0] = %v", chunks[0].Headings)
	}
	if !strings.Contains(chunks[0].Text, "First paragraph") || !strings.Contains(chunks[0].Text, "Second paragraph") {
		t.Fatalf("chunk 0 text missing paragraphs: %q", chunks[0].Text)
	}
	if len(chunks[1].Headings) != 2 || chunks[1].Headings[1] != "Background" {
		t.Fatalf("chunk 1 headings = %v", chunks[1].Headings)
	}
}

func TestChunkRespectsTokenBudget(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	items := []model.DocItem{
		heading(0, "Section"),
		text(0, long),
		text(0, long),
	}
	chunks := Chunk(items, Options{TokenBudget: 500, SmallSiblingMinTokens: 1})
	if len(chunks) < 2 {
		t.Fatalf("expected the budget to force a split, got %d chunks", len(chunks))
	}
}

func TestMergeSmallSiblingsFoldsUnderSameParent(t *testing.T) {
	chunks := []model.ProvisionalChunk{
		{Text: "a big enough chunk of real content here", Headings: []string{"A", "B"}},
		{Text: "tiny", Headings: []string{"A", "B"}},
		{Text: "a different section entirely", Headings: []string{"A", "C"}},
	}
	merged := mergeSmallSiblings(chunks, 50)
	if len(merged) != 2 {
		t.Fatalf("got %d merged chunks, want 2: %+v", len(merged), merged)
	}
	if !strings.Contains(merged[0].Text, "tiny") {
		t.Fatalf("expected tiny sibling folded into first chunk, got %q", merged[0].Text)
	}
}

func TestPushHeadingInfersDepthFromMarkers(t *testing.T) {
	stack := pushHeading(nil, "Chapter 1")
	stack = pushHeading(stack, "## Section A")
	stack = pushHeading(stack, "### Subsection")
	if len(stack) != 3 {
		t.Fatalf("stack = %v, want depth 3", stack)
	}
	stack = pushHeading(stack, "## Section B")
	if len(stack) != 2 || stack[1] != "Section B" {
		t.Fatalf("stack after sibling heading = %v", stack)
	}
}
