package retrieve

import (
	"context"
	"strings"
)

// Turn is one prior exchange in the dialog history.
type Turn struct {
	Question string
	Answer   string
}

// Rewriter is the narrowed C4/generator capability the rewrite step needs.
type Rewriter interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// RewriteResult is the rewrite step's structured output: three query
// variants and a keywords string for the lexical fan-out. V1 is canonical
// for reranking and downstream prompting.
type RewriteResult struct {
	V1       string
	Variants []string
	Keywords string
}

const rewriteSystemPrompt = `Given the dialog history and the student's latest question, produce three standalone search query variants and a keyword list. Respond in exactly this format, one field per line:
V1: <the best standalone rephrasing of the question>
V2: <an alternate phrasing emphasizing different terms>
V3: <a broader or narrower phrasing>
KEYWORDS: <space-separated individual search keywords>`

// RewriteQuery calls the generator with history and question to produce
// V1/V2/V3 and KEYWORDS. On parse or network failure it falls back to using
// the raw question as V1 and as the sole variant and keyword string.
func RewriteQuery(ctx context.Context, gen Rewriter, history []Turn, question string) RewriteResult {
	fallback := RewriteResult{V1: question, Variants: []string{question}, Keywords: question}
	if gen == nil {
		return fallback
	}

	user := renderHistory(history) + "\nQuestion: " + question
	raw, err := gen.Complete(ctx, rewriteSystemPrompt, user, 0.05, 300)
	if err != nil {
		return fallback
	}
	parsed, ok := parseRewrite(raw)
	if !ok {
		return fallback
	}
	return parsed
}

func renderHistory(history []Turn) string {
	var b strings.Builder
	for _, t := range history {
		b.WriteString("Student: " + t.Question + "\n")
		b.WriteString("Teacher: " + t.Answer + "\n")
	}
	return b.String()
}

// parseRewrite is line-prefix based: "V1:", "V2:", "V3:", "KEYWORDS:".
func parseRewrite(raw string) (RewriteResult, bool) {
	var r RewriteResult
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "V1:"):
			r.V1 = strings.TrimSpace(strings.TrimPrefix(line, "V1:"))
		case strings.HasPrefix(line, "V2:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "V2:")); v != "" {
				r.Variants = append(r.Variants, v)
			}
		case strings.HasPrefix(line, "V3:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "V3:")); v != "" {
				r.Variants = append(r.Variants, v)
			}
		case strings.HasPrefix(line, "KEYWORDS:"):
			r.Keywords = strings.TrimSpace(strings.TrimPrefix(line, "KEYWORDS:"))
		}
	}
	if r.V1 == "" {
		return RewriteResult{}, false
	}
	r.Variants = append([]string{r.V1}, r.Variants...)
	if r.Keywords == "" {
		r.Keywords = r.V1
	}
	return r, true
}
