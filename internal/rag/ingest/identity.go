package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"studycore/internal/model"
)

// identityGenerator is the narrow capability identity-card generation needs
// from the generator client.
type identityGenerator interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

const identitySystemPrompt = `You produce an ultra-condensed "identity card" for a study document, at most 400 words total. Respond in this exact structure:
TITLE: <title>
TYPE: <document type>
SUBJECT: <subject>
STRUCTURE:
<one heading per line, formatted "<heading> (pp. <first>-<last>)">
THEMES: <comma-separated key themes>
CONTEXT: <one or two sentences of context>`

var tocHeadingKeywordRe = regexp.MustCompile(`(?i)\b(table of contents|contents|index|sommaire|sections?)\b`)

// BuildIdentityCard implements step 3 of the ingestion state machine: it
// samples leading/middle/trailing paragraphs, extracts a table-of-contents
// block, and asks the generator for a condensed card. On generator failure
// it falls back to a deterministic template built from the title and TOC.
func BuildIdentityCard(ctx context.Context, gen identityGenerator, filename string, chunks []model.ProvisionalChunk) string {
	toc := extractTOC(chunks)
	sample := sampleParagraphs(chunks)

	title := strings.TrimSuffix(filename, ".pdf")
	user := fmt.Sprintf("Filename: %s\n\nTable of contents:\n%s\n\nSampled excerpts:\n%s", filename, strings.Join(toc, "\n"), sample)

	if gen != nil {
		if card, err := gen.Complete(ctx, identitySystemPrompt, user, 0.1, 700); err == nil && strings.TrimSpace(card) != "" {
			return card
		}
	}
	return deterministicCard(title, toc)
}

// extractTOC returns a table-of-contents block: headings found near the
// document's head or tail that look keyword-driven (a literal "Contents"
// section), falling back to up to 60 first-level headings in document order.
func extractTOC(chunks []model.ProvisionalChunk) []string {
	head := chunks
	if len(head) > 20 {
		head = head[:20]
	}
	tail := chunks
	if len(tail) > 20 {
		tail = tail[len(tail)-20:]
	}
	for _, c := range append(append([]model.ProvisionalChunk{}, head...), tail...) {
		if tocHeadingKeywordRe.MatchString(c.Text) {
			lines := strings.Split(c.Text, "\n")
			var out []string
			for _, l := range lines {
				if strings.TrimSpace(l) != "" {
					out = append(out, strings.TrimSpace(l))
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}

	var firstLevel []string
	seen := map[string]struct{}{}
	for _, c := range chunks {
		if len(c.Headings) == 0 {
			continue
		}
		h := c.Headings[0]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		pages := pageRange(c.Pages)
		firstLevel = append(firstLevel, fmt.Sprintf("%s (pp. %s)", h, pages))
		if len(firstLevel) >= 60 {
			break
		}
	}
	return firstLevel
}

func pageRange(pages []int) string {
	if len(pages) == 0 {
		return "?"
	}
	lo, hi := pages[0], pages[0]
	for _, p := range pages {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

// sampleParagraphs takes roughly 15 leading, 15 middle, and 15 trailing
// chunks' text, joined for the generator prompt.
func sampleParagraphs(chunks []model.ProvisionalChunk) string {
	const n = 15
	if len(chunks) == 0 {
		return ""
	}
	lead := sliceUpTo(chunks, 0, n)
	mid := sliceUpTo(chunks, len(chunks)/2, n)
	tail := sliceUpTo(chunks, maxInt(0, len(chunks)-n), n)

	var b strings.Builder
	writeGroup(&b, "LEADING", lead)
	writeGroup(&b, "MIDDLE", mid)
	writeGroup(&b, "TRAILING", tail)
	return b.String()
}

func writeGroup(b *strings.Builder, label string, chunks []model.ProvisionalChunk) {
	if len(chunks) == 0 {
		return
	}
	fmt.Fprintf(b, "--- %s ---\n", label)
	for _, c := range chunks {
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
}

func sliceUpTo(chunks []model.ProvisionalChunk, start, n int) []model.ProvisionalChunk {
	if start < 0 {
		start = 0
	}
	if start >= len(chunks) {
		return nil
	}
	end := start + n
	if end > len(chunks) {
		end = len(chunks)
	}
	return chunks[start:end]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func deterministicCard(title string, toc []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	b.WriteString("TYPE: document\nSUBJECT: unknown\nSTRUCTURE:\n")
	for _, h := range toc {
		b.WriteString(h)
		b.WriteString("\n")
	}
	b.WriteString("THEMES: \nCONTEXT: Generated deterministically after generator failure.\n")
	return b.String()
}
