// Package answer implements the Answer Assembler (C8): given the standalone
// question, the final document-grouped context, and the dialog history, it
// builds a single multimodal prompt and asks the generator for a final
// answer, falling back to a fixed apology on any generator failure.
package answer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"studycore/internal/generator"
	"studycore/internal/model"
	"studycore/internal/rag/obs"
	"studycore/internal/rerank"
)

// Style selects the system prompt register.
type Style string

const (
	StyleLight     Style = "light"
	StyleVerbose   Style = "verbose"
	StyleReasoning Style = "reasoning"
)

// Turn is one prior exchange in the dialog history.
type Turn struct {
	Question string
	Answer   string
}

// Generator is the narrow C4 capability the assembler needs: a multimodal
// completion call.
type Generator interface {
	CompleteMultimodal(ctx context.Context, system, user string, images []generator.ImageRef, temperature float64, maxTokens int) (string, error)
}

// DefaultHistoryLimit bounds how many trailing turns are rendered into the
// prompt when no limit is configured.
const DefaultHistoryLimit = 6

// apology is returned verbatim whenever the generator call fails; history is
// left untouched by the caller in that case.
const apology = "I'm sorry, I wasn't able to put together an answer just now. Please try asking again."

// Assembler builds and submits the final answer prompt.
type Assembler struct {
	Gen             Generator
	HistoryLimit    int
	MaxOutputTokens int
	Log             obs.Logger
	Metrics         obs.Metrics
}

func (a *Assembler) logger() obs.Logger {
	if a.Log != nil {
		return a.Log
	}
	return obs.NoopLogger{}
}

func (a *Assembler) metrics() obs.Metrics {
	if a.Metrics != nil {
		return a.Metrics
	}
	return obs.NoopMetrics{}
}

// Apology returns the fixed string Answer emits on generator failure, so
// callers can recognize it without a separate out-of-band error signal.
func (a *Assembler) Apology() string {
	return apology
}

// NewAssembler builds an assembler with the given generator.
func NewAssembler(gen Generator) *Assembler {
	return &Assembler{Gen: gen, HistoryLimit: DefaultHistoryLimit, MaxOutputTokens: 1200}
}

// Answer renders the prompt from question/context/history for the given
// style and asks the generator for a completion. On any generator failure
// it returns the fixed apology string; the caller must not append that to
// history.
func (a *Assembler) Answer(ctx context.Context, question string, items []model.ContextItem, history []Turn, style Style) string {
	limit := a.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	user := buildUserPrompt(question, items, trailingTurns(history, limit))
	images := dedupImages(items)

	maxTokens := a.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1200
	}

	out, err := a.Gen.CompleteMultimodal(ctx, systemPrompt(style), user, images, 0.25, maxTokens)
	if err != nil {
		a.metrics().IncCounter("answer_apology_total", map[string]string{"style": string(style)})
		a.logger().Error("answer generation failed, returning apology", map[string]any{"error": err.Error(), "style": string(style)})
		return apology
	}
	a.metrics().IncCounter("answer_total", map[string]string{"style": string(style)})
	return out
}

func trailingTurns(history []Turn, limit int) []Turn {
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

func systemPrompt(style Style) string {
	switch style {
	case StyleVerbose:
		return `You are a patient teacher helping a student review study material. Use only the supplied knowledge blocks and dialog history to answer; if the material only partially covers the question, answer the part it covers and say plainly what is missing. Accept spelling variants and minor misspellings in the student's question as referring to terms present in the knowledge blocks. Never invent facts absent from the supplied material.`
	case StyleReasoning:
		return `You are a teacher helping a student review study material. First write a brief internal decomposition of what the question is asking and which knowledge blocks are relevant, under a "Reasoning:" heading. Then write the final answer under an "Answer:" heading, using only the supplied knowledge blocks and dialog history. If the material only partially covers the question, say so in the final answer. Accept spelling variants and minor misspellings as referring to terms present in the knowledge blocks.`
	default:
		return `Answer the student's question using only the supplied knowledge blocks and dialog history. If the knowledge blocks do not contain the answer, say "I don't have that in the provided material."`
	}
}

// buildUserPrompt renders history, then one structured block per context
// item, then the question.
func buildUserPrompt(question string, items []model.ContextItem, history []Turn) string {
	var b strings.Builder
	for _, t := range history {
		b.WriteString("Student: " + t.Question + "\n")
		b.WriteString("Teacher: " + t.Answer + "\n")
	}
	if len(history) > 0 {
		b.WriteString("\n")
	}

	for i, item := range items {
		b.WriteString(knowledgeBlock(i+1, item))
		b.WriteString("\n\n")
	}

	b.WriteString("Question: " + question)
	return b.String()
}

// knowledgeBlock renders one context item using the same structured
// [VISUAL AND TABLE CONTENT]/[TITLE/CONTEXT]/[RAW TEXT] concatenation the
// reranker scored it with, per §4.8, so the generator sees the identical
// text the retrieval pipeline judged relevant, followed by one
// "[TABLE DATA]: ..." line per table the chunk text does not already contain.
func knowledgeBlock(idx int, item model.ContextItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[KNOWLEDGE #%d | Page(s): %s]\n", idx, joinPages(item.Chunk.PageNumbers))
	b.WriteString(rerank.BuildPassageText(rerank.Passage{
		VisualAndTables: visualAndTables(item.Chunk),
		TitleContext:    item.Chunk.HeadingFull,
		RawText:         item.Chunk.Text,
	}))
	for _, t := range item.Chunk.Tables {
		if !strings.Contains(item.Chunk.Text, t) {
			b.WriteString("\n[TABLE DATA]: " + t)
		}
	}
	return b.String()
}

// visualAndTables joins a chunk's visual summary and table markdown, the
// same composition rerank.Passage.VisualAndTables carries at query time.
func visualAndTables(c model.Chunk) string {
	var parts []string
	if c.VisualSummary != "" {
		parts = append(parts, c.VisualSummary)
	}
	for _, t := range c.Tables {
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n\n")
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

// dedupImages collects every image URL across the surviving context items,
// in first-seen order, each attached once regardless of how many chunks
// reference it.
func dedupImages(items []model.ContextItem) []generator.ImageRef {
	seen := map[string]struct{}{}
	var out []generator.ImageRef
	for _, item := range items {
		for _, url := range item.Chunk.ImagesURLs {
			if _, ok := seen[url]; ok {
				continue
			}
			seen[url] = struct{}{}
			out = append(out, generator.ImageRef{URL: url})
		}
	}
	return out
}
