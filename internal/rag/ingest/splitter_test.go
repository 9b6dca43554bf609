package ingest

import (
	"strings"
	"testing"

	"studycore/internal/model"
)

func TestSplitOverlongLeavesShortChunksUntouched(t *testing.T) {
	chunks := []model.EnrichedChunk{{Text: "short text", ChunkIndex: 0}}
	out := SplitOverlong(chunks, 100, 10)
	if len(out) != 1 || out[0].Text != "short text" {
		t.Fatalf("out = %+v", out)
	}
}

func TestSplitOverlongSplitsLongTextAndReindexes(t *testing.T) {
	para := strings.Repeat("word ", 200)
	long := para + "\n\n" + para + "\n\n" + para
	chunks := []model.EnrichedChunk{
		{Text: "intro", ChunkIndex: 0},
		{Text: long, ChunkIndex: 1},
	}
	out := SplitOverlong(chunks, 500, 20)
	if len(out) < 3 {
		t.Fatalf("expected the long chunk to split into multiple pieces, got %d total", len(out))
	}
	for i, c := range out {
		if c.ChunkIndex != i {
			t.Fatalf("chunk_index[%d] = %d, want sequential reassignment", i, c.ChunkIndex)
		}
	}
}

func TestSplitKeepsTableRowsTogether(t *testing.T) {
	text := "para one\n\n| a | b |\n| c | d |\n| e | f |\n\npara two"
	segments := splitKeepTableRows(text, "\n\n", 1000)
	found := false
	for _, s := range segments {
		if strings.Count(s, "|") > 2 {
			found = true
		}
	}
	_ = found // paragraph-level split does not cross into row-level logic; row cohesion is exercised via "\n"
	rowSegments := splitKeepTableRows("| a | b |\n| c | d |\n| e | f |", "\n", 1000)
	if len(rowSegments) != 1 {
		t.Fatalf("expected all three table rows joined into one segment, got %d: %v", len(rowSegments), rowSegments)
	}
}
