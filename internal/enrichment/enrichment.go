// Package enrichment implements the Enrichment Workers (C6): for each chunk
// carrying tables or images it asks the generator for a visual summary and
// extracted entities, bounded by a single process-wide counting semaphore
// shared across every in-flight ingest.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"studycore/internal/model"
)

// Generator is the narrow contract enrichment needs from C4/the generator
// client: a single structured-JSON completion call.
type Generator interface {
	CompleteJSON(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// DefaultCapacity is the semaphore size mandated for the enrichment pool:
// a hard ceiling of 10 concurrent generator calls across the whole process,
// not a per-request rate limit.
const DefaultCapacity = 10

// Pool runs enrichment requests through a bounded, process-wide semaphore.
// A single Pool should be constructed once at startup and shared by every
// concurrent ingest.
type Pool struct {
	gen Generator
	sem *semaphore.Weighted
}

// NewPool builds an enrichment pool with the given generator and semaphore
// capacity (0 uses DefaultCapacity).
func NewPool(gen Generator, capacity int64) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{gen: gen, sem: semaphore.NewWeighted(capacity)}
}

const enrichSystemPrompt = `You analyze a single excerpt from a study document. Respond with a JSON object with exactly two fields:
"visual_summary": a string describing ONLY facts present in the attached table(s)/image references that are NOT already stated in the raw text. Use "" when there is nothing to add.
"entities": an array of {"name": string, "type": "PERSON"|"PLACE"|"CONCEPT"|"EVENT", "aliases": [string], "relevance": number 0..1} for named things the excerpt discusses.
Do not restate the raw text. Do not include any field other than these two.`

type enrichResponse struct {
	VisualSummary string        `json:"visual_summary"`
	Entities      []entityJSON  `json:"entities"`
}

type entityJSON struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Aliases   []string `json:"aliases"`
	Relevance float64  `json:"relevance"`
}

var tableRowRe = regexp.MustCompile(`(?m)^[ \t]*\|.*\|[ \t]*$\n?`)
var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Enrich runs every chunk that has tables or images through the generator,
// bounded by the pool's semaphore. Chunks without tables or images bypass
// the generator entirely. A single chunk's failure degrades gracefully: its
// visual_summary stays empty and its entity list stays empty; it never
// fails the batch.
func (p *Pool) Enrich(ctx context.Context, chunks []model.EnrichedChunk) ([]model.EnrichedChunk, error) {
	out := make([]model.EnrichedChunk, len(chunks))
	copy(out, chunks)

	g, gctx := errgroup.WithContext(ctx)
	for i := range out {
		i := i
		c := out[i]
		if len(c.Tables) == 0 && len(c.ImagesURLs) == 0 {
			continue
		}
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return nil // context cancelled; chunk keeps empty enrichment
			}
			defer p.sem.Release(1)

			summary, entities := p.enrichOne(gctx, c)
			out[i].VisualSummary = summary
			out[i].Entities = entities
			if summary != "" {
				out[i].Text = stripTableNoise(c.Text)
			}
			return nil
		})
	}
	_ = g.Wait() // per-chunk errors are absorbed inside enrichOne; never aborts the batch
	return out, nil
}

func (p *Pool) enrichOne(ctx context.Context, c model.EnrichedChunk) (string, []model.ExtractedEntity) {
	user := buildEnrichPrompt(c)
	raw, err := p.gen.CompleteJSON(ctx, enrichSystemPrompt, user, 0.1, 600)
	if err != nil {
		return "", nil
	}
	var resp enrichResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", nil
	}
	entities := make([]model.ExtractedEntity, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		entities = append(entities, model.ExtractedEntity{
			Name:      e.Name,
			Type:      normalizeEntityType(e.Type),
			Aliases:   e.Aliases,
			Relevance: e.Relevance,
		})
	}
	return resp.VisualSummary, entities
}

func normalizeEntityType(t string) model.EntityType {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case string(model.EntityPerson):
		return model.EntityPerson
	case string(model.EntityPlace):
		return model.EntityPlace
	case string(model.EntityEvent):
		return model.EntityEvent
	default:
		return model.EntityConcept
	}
}

func buildEnrichPrompt(c model.EnrichedChunk) string {
	var b strings.Builder
	if len(c.Headings) > 0 {
		fmt.Fprintf(&b, "Heading: %s\n\n", strings.Join(c.Headings, " > "))
	}
	b.WriteString("Text:\n")
	b.WriteString(c.Text)
	b.WriteString("\n\n")
	for _, t := range c.Tables {
		b.WriteString("Table:\n")
		b.WriteString(t)
		b.WriteString("\n\n")
	}
	for _, u := range c.ImagesURLs {
		fmt.Fprintf(&b, "Image: %s\n", u)
	}
	return b.String()
}

// stripTableNoise removes standalone markdown table rows and collapses
// excessive blank lines, used once a visual_summary has captured the
// table's content so the raw pipe rows no longer need to ride along in text.
func stripTableNoise(text string) string {
	out := tableRowRe.ReplaceAllString(text, "")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
