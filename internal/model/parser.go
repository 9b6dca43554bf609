package model

import "context"

// Parser is the narrow contract the ingestion orchestrator depends on.
// Concrete PDF parsing (layout detection, OCR, table structure recognition)
// is out of scope for the core; any implementation satisfying this
// interface — a real layout model, a fixture replaying recorded items, or a
// test double — can drive C5 identically.
type Parser interface {
	// Parse reads the PDF blob and returns its structural items in page
	// order, along with the scan-detection verdict that governs whether OCR
	// was applied.
	Parse(ctx context.Context, pdf []byte, filename string) (ParsedDocument, error)
}

// DetectScanned applies the heuristic from the ingestion contract: a
// document is scanned if each of its first three pages has fewer than 50
// text characters and at least one embedded picture.
func DetectScanned(items []DocItem, pageCount int) bool {
	checkPages := pageCount
	if checkPages > 3 {
		checkPages = 3
	}
	for page := 0; page < checkPages; page++ {
		textChars := 0
		hasPicture := false
		for _, it := range items {
			if it.Page != page {
				continue
			}
			switch it.Kind {
			case ItemText, ItemHeading:
				if s, ok := it.Payload.(string); ok {
					textChars += len(s)
				}
			case ItemPicture:
				hasPicture = true
			}
		}
		if !(textChars < 50 && hasPicture) {
			return false
		}
	}
	return checkPages > 0
}
