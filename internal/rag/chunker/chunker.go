// Package chunker implements the layout-aware hierarchical chunker (C5 step
// 2): it walks a parsed document's structural items, groups text under its
// heading path, and emits provisional chunks bounded by a token budget, with
// small sibling paragraphs merged into their neighbor.
package chunker

import (
	"strings"

	"studycore/internal/model"
	"studycore/internal/util"
)

// Options configures the hierarchical chunker.
type Options struct {
	// TokenBudget bounds each chunk's size (default 1500; bench configs
	// commonly use 1000/1500/2500).
	TokenBudget int
	// SmallSiblingMinTokens is the threshold below which an adjacent chunk
	// under the same parent heading is merged into its sibling rather than
	// kept standalone.
	SmallSiblingMinTokens int
}

type builder struct {
	headings []string
	pages    map[int]struct{}
	itemRefs []int
	text     strings.Builder
}

func (b *builder) reset() {
	b.pages = map[int]struct{}{}
	b.itemRefs = nil
	b.text.Reset()
}

func (b *builder) tokens() int { return util.CountTokens(b.text.String()) }

func (b *builder) flush(out *[]model.ProvisionalChunk) {
	text := strings.TrimSpace(b.text.String())
	if text == "" {
		return
	}
	pages := make([]int, 0, len(b.pages))
	for p := range b.pages {
		pages = append(pages, p)
	}
	sortInts(pages)
	*out = append(*out, model.ProvisionalChunk{
		Text:     text,
		Headings: append([]string{}, b.headings...),
		Pages:    pages,
		ItemRefs: append([]int{}, b.itemRefs...),
	})
	b.reset()
}

// Chunk walks items in document order and emits provisional chunks, each
// carrying its heading path, referenced pages, and back-pointers to the
// source items so later enrichment steps can pull tables/pictures without
// re-walking the document.
func Chunk(items []model.DocItem, opt Options) []model.ProvisionalChunk {
	budget := opt.TokenBudget
	if budget <= 0 {
		budget = 1500
	}
	mergeFloor := opt.SmallSiblingMinTokens
	if mergeFloor <= 0 {
		mergeFloor = 200
	}

	var out []model.ProvisionalChunk
	cur := &builder{pages: map[int]struct{}{}}
	var headingStack []string

	for idx, it := range items {
		switch it.Kind {
		case model.ItemHeading:
			heading, _ := it.Payload.(string)
			if heading == "" {
				continue
			}
			if cur.tokens() > 0 {
				cur.flush(&out)
			}
			headingStack = pushHeading(headingStack, heading)
			cur.headings = append([]string{}, headingStack...)
		case model.ItemText:
			text, _ := it.Payload.(string)
			if strings.TrimSpace(text) == "" {
				continue
			}
			if cur.tokens() > 0 && cur.tokens()+util.CountTokens(text) > budget {
				cur.flush(&out)
				cur.headings = append([]string{}, headingStack...)
			}
			if cur.text.Len() > 0 {
				cur.text.WriteString("\n\n")
			}
			cur.text.WriteString(text)
			cur.pages[it.Page] = struct{}{}
			cur.itemRefs = append(cur.itemRefs, idx)
		case model.ItemTable, model.ItemPicture:
			// Tables and pictures are resolved against the chunk's page/bbox
			// span during structural enrichment; record the reference and
			// page now so that step can find them.
			cur.pages[it.Page] = struct{}{}
			cur.itemRefs = append(cur.itemRefs, idx)
		}
	}
	cur.flush(&out)

	return mergeSmallSiblings(out, mergeFloor)
}

// pushHeading maintains a root-to-leaf heading stack by inferring depth from
// leading '#' markers; headings without markers replace the deepest level.
func pushHeading(stack []string, heading string) []string {
	depth := 0
	trimmed := heading
	for strings.HasPrefix(trimmed, "#") {
		depth++
		trimmed = strings.TrimPrefix(trimmed, "#")
	}
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		trimmed = heading
	}
	if depth == 0 {
		depth = len(stack)
		if depth == 0 {
			depth = 1
		}
	}
	if depth > len(stack)+1 {
		depth = len(stack) + 1
	}
	newStack := append([]string{}, stack[:depth-1]...)
	return append(newStack, trimmed)
}

// mergeSmallSiblings folds chunks below mergeFloor tokens into the previous
// chunk when both sit under the same heading path, avoiding a
// proliferation of tiny leaf chunks under one section.
func mergeSmallSiblings(chunks []model.ProvisionalChunk, mergeFloor int) []model.ProvisionalChunk {
	if len(chunks) < 2 {
		return chunks
	}
	out := make([]model.ProvisionalChunk, 0, len(chunks))
	out = append(out, chunks[0])
	for i := 1; i < len(chunks); i++ {
		prev := &out[len(out)-1]
		c := chunks[i]
		if util.CountTokens(c.Text) < mergeFloor && sameParent(prev.Headings, c.Headings) {
			prev.Text = prev.Text + "\n\n" + c.Text
			prev.Pages = mergeSortedUnique(prev.Pages, c.Pages)
			prev.ItemRefs = append(prev.ItemRefs, c.ItemRefs...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func sameParent(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mergeSortedUnique(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, v := range append(append([]int{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sortInts(out)
	return out
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
