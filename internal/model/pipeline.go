package model

// ItemKind enumerates the structural kinds a parser can emit. The core never
// reaches past this narrow contract into a concrete parser's internals.
type ItemKind string

const (
	ItemText    ItemKind = "text"
	ItemHeading ItemKind = "heading"
	ItemTable   ItemKind = "table"
	ItemPicture ItemKind = "picture"
)

// BBox is a page-relative bounding box in layout units.
type BBox struct {
	X0, Y0, X1, Y1 float64
}

// VerticalOverlaps reports whether b and o overlap on the vertical axis, b
// expanded by margin on each side.
func (b BBox) VerticalOverlaps(o BBox, margin float64) bool {
	lo, hi := b.Y0-margin, b.Y1+margin
	return o.Y1 >= lo && o.Y0 <= hi
}

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// DocItem is a single structural element a parser yields: a heading, a run
// of text, a table, or a picture. Payload carries kind-specific content
// (heading text, paragraph text, markdown table, or image bytes+format) so
// callers never need to type-assert into a concrete parser implementation.
type DocItem struct {
	Kind    ItemKind
	Page    int
	BBox    BBox
	Payload any
}

// PicturePayload is the DocItem.Payload shape for ItemPicture.
type PicturePayload struct {
	Data       []byte
	Format     string // "png" | "jpeg" | ...
	WidthPx    int
	HeightPx   int
}

// ParsedDocument is the output of the Parse step: a flat, page-ordered
// stream of structural items plus the scan-detection verdict.
type ParsedDocument struct {
	Filename  string
	Items     []DocItem
	PageCount int
	IsScanned bool
	OCRUsed   bool
}

// ProvisionalChunk is what the chunker emits before identity/entity
// enrichment: text, its heading path, referenced pages, and back-pointers
// into the raw items so later steps can pull tables/pictures without
// re-walking the whole document.
type ProvisionalChunk struct {
	Text              string
	Headings          []string
	Pages             []int
	ItemRefs          []int // indices into ParsedDocument.Items
	IsTableContinuation bool
	IsTableCut        bool
}

// EnrichedChunk is a ProvisionalChunk after structural enrichment (tables,
// images, heading hygiene) and AI enrichment (visual summary, entities) have
// been applied, but before it has a database identity.
type EnrichedChunk struct {
	ChunkIndex    int
	Text          string
	VisualSummary string
	Headings      []string
	HeadingFull   string
	Pages         []int
	Tables        []string
	ImagesURLs    []string
	ChunkType     ChunkType
	Entities      []ExtractedEntity
	// IsTableContinuation/IsTableCut are set by the recursive splitter (step
	// 6) when a split had to run through a table row; they inform the
	// enrichment prompt but are not persisted on the chunk row.
	IsTableContinuation bool
	IsTableCut          bool
}

// PersistedChunk is an EnrichedChunk after C1 has assigned it a chunk_id.
type PersistedChunk struct {
	EnrichedChunk
	ID         string
	DocumentID string
}

// RankedChunk pairs a hydrated Chunk with its fused and/or rerank score
// during query-time processing.
type RankedChunk struct {
	Chunk      Chunk
	FusedScore float64
	RerankScore float64
}

// ContextItem is one element of the final, document-grouped context handed
// to the answer assembler: either a document's identity chunk or one of its
// surviving content chunks, carrying the document it belongs to for grouping
// and display.
type ContextItem struct {
	Chunk      Chunk
	Document   Document
	IsIdentity bool
	RerankScore float64
}
