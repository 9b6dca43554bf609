package ingest

import (
	"regexp"
	"strings"

	"studycore/internal/model"
)

// splitSeparators are tried in priority order: paragraph break, line break,
// table row pipe, sentence boundary, then plain space, matching a recursive
// character splitter's usual separator ladder.
var splitSeparators = []string{"\n\n", "\n", "|", ". ", " "}

var pipeRowLineRe = regexp.MustCompile(`^\s*\|.*\|\s*$`)

// SplitOverlong implements step 6: it rechunks any enriched chunk whose text
// exceeds sizeChars (configured chunk_size*3, a character proxy for the
// token budget) using a recursive character splitter, with overlapChars of
// trailing context carried into the next piece. Table rows are kept
// together where possible and flagged when a split had to cut through one.
// chunk_index is reassigned sequentially across the whole, flattened
// output.
func SplitOverlong(chunks []model.EnrichedChunk, sizeChars, overlapChars int) []model.EnrichedChunk {
	if sizeChars <= 0 {
		sizeChars = 4500 // 1500 tokens * 3
	}
	var out []model.EnrichedChunk
	for _, c := range chunks {
		if len(c.Text) <= sizeChars {
			out = append(out, c)
			continue
		}
		pieces := recursiveSplit(c.Text, sizeChars, overlapChars, 0)
		for _, p := range pieces {
			piece := c
			piece.Text = p.text
			piece.IsTableContinuation = p.isTableContinuation
			piece.IsTableCut = p.isTableCut
			out = append(out, piece)
		}
	}
	for i := range out {
		out[i].ChunkIndex = i
	}
	return out
}

type splitPiece struct {
	text              string
	isTableContinuation bool
	isTableCut        bool
}

func recursiveSplit(text string, size, overlap, sepIdx int) []splitPiece {
	if len(text) <= size || sepIdx >= len(splitSeparators) {
		return []splitPiece{{text: text, isTableCut: sepIdx >= len(splitSeparators) && len(text) > size}}
	}
	sep := splitSeparators[sepIdx]
	segments := splitKeepTableRows(text, sep, size)

	var pieces []splitPiece
	var cur strings.Builder
	lastWasTableRow := false
	for _, seg := range segments {
		if cur.Len() > 0 && cur.Len()+len(seg)+len(sep) > size {
			piece := cur.String()
			if len(piece) > size {
				pieces = append(pieces, recursiveSplit(piece, size, overlap, sepIdx+1)...)
			} else {
				pieces = append(pieces, splitPiece{text: piece, isTableContinuation: lastWasTableRow})
			}
			tail := tailOverlap(piece, overlap)
			cur.Reset()
			cur.WriteString(tail)
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(seg)
		lastWasTableRow = pipeRowLineRe.MatchString(seg)
	}
	if cur.Len() > 0 {
		piece := cur.String()
		if len(piece) > size {
			pieces = append(pieces, recursiveSplit(piece, size, overlap, sepIdx+1)...)
		} else {
			pieces = append(pieces, splitPiece{text: piece})
		}
	}
	return pieces
}

// splitKeepTableRows splits on sep but never inside a markdown table row,
// preserving row cohesion so a row's cells never land in two pieces.
func splitKeepTableRows(text, sep string, size int) []string {
	raw := strings.Split(text, sep)
	if sep != "\n" {
		return raw
	}
	var out []string
	var tableBuf []string
	flushTable := func() {
		if len(tableBuf) > 0 {
			out = append(out, strings.Join(tableBuf, "\n"))
			tableBuf = nil
		}
	}
	for _, line := range raw {
		if pipeRowLineRe.MatchString(line) {
			tableBuf = append(tableBuf, line)
			continue
		}
		flushTable()
		out = append(out, line)
	}
	flushTable()
	return out
}

func tailOverlap(s string, overlap int) string {
	if overlap <= 0 || len(s) <= overlap {
		return ""
	}
	return s[len(s)-overlap:]
}
