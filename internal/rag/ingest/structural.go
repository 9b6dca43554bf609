package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"studycore/internal/model"
)

// imageUploader is the narrow capability structural enrichment needs from
// C3: upload raw image bytes, return a stable public URL.
type imageUploader interface {
	UploadImage(ctx context.Context, raw []byte) (string, error)
}

const imageMarginUnits = 100.0
const minPictureSide = 200
const tableCoverageThreshold = 0.05

// StructuralEnrich implements step 4: for each provisional chunk it resolves
// canonical text, heading list, page set, tables (markdown already embedded
// in item payloads), and images (uploaded once per page+bbox signature).
func StructuralEnrich(ctx context.Context, items []model.DocItem, chunks []model.ProvisionalChunk, uploader imageUploader) []model.EnrichedChunk {
	uploaded := map[string]string{} // page+bbox signature -> URL, dedup across the whole document
	toc := tocHeadings(chunks)

	out := make([]model.EnrichedChunk, len(chunks))
	for i, pc := range chunks {
		ec := model.EnrichedChunk{
			Text:     pc.Text,
			Headings: pc.Headings,
			Pages:    pc.Pages,
		}
		ec.HeadingFull = strings.Join(pc.Headings, " > ")

		isTable := looksLikeMarkdownTable(pc.Text)
		chunkPages := toSet(pc.Pages)

		for _, ref := range pc.ItemRefs {
			if ref < 0 || ref >= len(items) {
				continue
			}
			it := items[ref]
			switch it.Kind {
			case model.ItemTable:
				if table, ok := it.Payload.(string); ok && table != "" {
					ec.Tables = append(ec.Tables, table)
				}
			case model.ItemPicture:
				pic, ok := it.Payload.(model.PicturePayload)
				if !ok {
					continue
				}
				if pic.WidthPx < minPictureSide || pic.HeightPx < minPictureSide {
					continue
				}
				if _, onPage := chunkPages[it.Page]; !onPage {
					continue
				}
				spansExactlyThisPage := len(chunkPages) == 1
				intersects := chunkSpan(items, pc.ItemRefs).VerticalOverlaps(it.BBox, imageMarginUnits)
				if !intersects && !spansExactlyThisPage {
					continue
				}
				if isTable && coversMostOfVertical(it.BBox, chunkSpan(items, pc.ItemRefs)) {
					continue
				}
				sig := pictureSignature(it.Page, it.BBox)
				url, ok := uploaded[sig]
				if !ok {
					u, err := uploader.UploadImage(ctx, pic.Data)
					if err != nil {
						continue // non-fatal: chunk proceeds without this image
					}
					url = u
					uploaded[sig] = url
				}
				ec.ImagesURLs = append(ec.ImagesURLs, url)
			}
		}

		ec.Headings = applyHeadingHygiene(pc.Headings, toc)
		ec.HeadingFull = strings.Join(ec.Headings, " > ")
		out[i] = ec
	}
	return out
}

func toSet(pages []int) map[int]struct{} {
	s := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		s[p] = struct{}{}
	}
	return s
}

// chunkSpan computes the union bounding box across a chunk's referenced
// items, used to test picture intersection against the chunk's overall span.
func chunkSpan(items []model.DocItem, refs []int) model.BBox {
	var span model.BBox
	first := true
	for _, ref := range refs {
		if ref < 0 || ref >= len(items) {
			continue
		}
		b := items[ref].BBox
		if first {
			span = b
			first = false
			continue
		}
		if b.Y0 < span.Y0 {
			span.Y0 = b.Y0
		}
		if b.Y1 > span.Y1 {
			span.Y1 = b.Y1
		}
	}
	return span
}

func coversMostOfVertical(pic, span model.BBox) bool {
	spanHeight := span.Height()
	if spanHeight <= 0 {
		return false
	}
	overlapHeight := pic.Height()
	return overlapHeight/spanHeight > tableCoverageThreshold
}

// pictureSignature identifies a picture by page and bounding box so the same
// picture referenced by two overlapping chunks is uploaded only once.
func pictureSignature(page int, b model.BBox) string {
	h := sha1.New()
	fmt.Fprintf(h, "%d:%.2f:%.2f:%.2f:%.2f", page, b.X0, b.Y0, b.X1, b.Y1)
	return hex.EncodeToString(h.Sum(nil))
}

var pipeLineRe = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)

func looksLikeMarkdownTable(text string) bool {
	return pipeLineRe.MatchString(text)
}

var quotedCitationRe = regexp.MustCompile(`^["“'].*["”']$`)
var punctOrDigitsRe = regexp.MustCompile(`^[\s\p{P}\d]+$`)
var pagePriceDateRe = regexp.MustCompile(`(?i)^(page\s*\d+|\$?\d+[.,]\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4})$`)

const maxHeadingLen = 56

// applyHeadingHygiene rejects headings that look like citations, pure
// punctuation/digits, or page/price/date strings, or that are overlong and
// absent from the identity card's table of contents; rejected headings
// inherit the nearest preceding valid one.
func applyHeadingHygiene(headings []string, toc map[string]struct{}) []string {
	out := make([]string, len(headings))
	last := "General section"
	for i, h := range headings {
		trimmed := strings.TrimSpace(h)
		if isRejectedHeading(trimmed, toc) {
			out[i] = last
			continue
		}
		out[i] = trimmed
		last = trimmed
	}
	return out
}

func isRejectedHeading(h string, toc map[string]struct{}) bool {
	if h == "" {
		return true
	}
	if quotedCitationRe.MatchString(h) {
		return true
	}
	if punctOrDigitsRe.MatchString(h) {
		return true
	}
	if pagePriceDateRe.MatchString(h) {
		return true
	}
	if len(h) > maxHeadingLen {
		if _, ok := toc[h]; !ok {
			return true
		}
	}
	return false
}

// tocHeadings returns the chunk headings that appear in the table-of-contents
// block the identity card is built from (extractTOC).
func tocHeadings(chunks []model.ProvisionalChunk) map[string]struct{} {
	lines := extractTOC(chunks)
	out := map[string]struct{}{}
	for _, c := range chunks {
		for _, h := range c.Headings {
			h = strings.TrimSpace(h)
			for _, l := range lines {
				if h != "" && strings.Contains(l, h) {
					out[h] = struct{}{}
					break
				}
			}
		}
	}
	return out
}
