// Package rerank implements the cross-encoder half of C4: given a query and
// a set of candidate passages, it scores each (query, passage) pair and
// returns the passages ordered by score, filtered and truncated.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"studycore/internal/config"
)

// Client calls a cross-encoder reranking endpoint (e.g. a BGE/Cohere-style
// /rerank API) over HTTP.
type Client struct {
	cfg        config.RerankerConfig
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for rerank requests, e.g. an
// otelhttp-instrumented client from observability.NewHTTPClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient builds a reranker client from configuration.
func NewClient(cfg config.RerankerConfig, opts ...Option) *Client {
	cl := &Client{cfg: cfg, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Passage is one candidate handed to the reranker, already split into the
// structured fields the prompt concatenates: visual/table content, a
// title/context line, and the raw chunk text. Empty fields are omitted.
type Passage struct {
	ID               string
	VisualAndTables  string
	TitleContext     string
	RawText          string
}

// Scored pairs a passage id with its cross-encoder score.
type Scored struct {
	ID    string
	Score float64
}

type rerankReq struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResp struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores every passage against query and returns those scoring at
// least minScore, sorted descending, truncated to topN. The dense vector
// score is never consulted here — only the cross-encoder's own score
// decides order.
func (c *Client) Rerank(ctx context.Context, query string, passages []Passage, topN int, minScore float64) ([]Scored, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	docs := make([]string, len(passages))
	for i, p := range passages {
		docs[i] = BuildPassageText(p)
	}

	timeout := c.cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody, _ := json.Marshal(rerankReq{Model: c.cfg.Model, Query: query, Documents: docs, TopN: len(docs)})
	url := c.cfg.BaseURL + c.cfg.Path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank: %s: %s", resp.Status, string(b))
	}
	var rr rerankResp
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}

	if minScore <= 0 {
		minScore = c.cfg.MinRerankScore
	}
	if minScore <= 0 {
		minScore = 0.01
	}
	if topN <= 0 {
		topN = c.cfg.DefaultTopN
	}
	if topN <= 0 {
		topN = 8
	}

	out := make([]Scored, 0, len(rr.Results))
	for _, r := range rr.Results {
		if r.Index < 0 || r.Index >= len(passages) {
			continue
		}
		if r.Score < minScore {
			continue
		}
		out = append(out, Scored{ID: passages[r.Index].ID, Score: r.Score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// BuildPassageText renders the structured "[VISUAL AND TABLE CONTENT]" /
// "[TITLE/CONTEXT]" / "[RAW TEXT]" concatenation submitted to the reranker,
// omitting empty sections. The answer assembler (C8) reuses this exact
// rendering for its knowledge blocks, per §4.8.
func BuildPassageText(p Passage) string {
	var out string
	if p.VisualAndTables != "" {
		out += "[VISUAL AND TABLE CONTENT]\n" + p.VisualAndTables + "\n\n"
	}
	if p.TitleContext != "" {
		out += "[TITLE/CONTEXT]\n" + p.TitleContext + "\n\n"
	}
	if p.RawText != "" {
		out += "[RAW TEXT]\n" + p.RawText
	}
	return out
}
