package embedding

import (
	"context"
	"fmt"
	"net/http"

	"studycore/internal/config"
)

// queryInstructionPrefix is prepended to query text before embedding; some
// embedding models are tuned with an asymmetric instruction for queries vs
// documents.
const queryInstructionPrefix = "query: "

// Client implements the embed_documents/embed_query contract (C4) over the
// configured HTTP embedding endpoint.
type Client struct {
	cfg        config.EmbeddingConfig
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for embedding requests, e.g. an
// otelhttp-instrumented client from observability.NewHTTPClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient builds an embedding client from configuration.
func NewClient(cfg config.EmbeddingConfig, opts ...Option) *Client {
	cl := &Client{cfg: cfg, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

func (c *Client) Dimension() int { return c.cfg.Dimensions }

// EmbedDocuments embeds already-prepared chunk texts. headingFulls is kept
// in the signature for callers that still want the client to prepend "#
// <heading_full>\n\n" themselves; when non-empty it must match texts in
// length. Callers that already embedded the heading into text (as
// ingest.embeddingText does per §4.4) must pass nil here to avoid a double
// prefix.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string, headingFulls []string) ([][]float32, error) {
	if len(headingFulls) == 0 {
		return EmbedText(ctx, c.httpClient, c.cfg, texts)
	}
	if len(headingFulls) != len(texts) {
		return nil, fmt.Errorf("embedding: headingFulls length %d does not match texts length %d", len(headingFulls), len(texts))
	}
	prepared := make([]string, len(texts))
	for i, t := range texts {
		if headingFulls[i] != "" {
			prepared[i] = "# " + headingFulls[i] + "\n\n" + t
		} else {
			prepared[i] = t
		}
	}
	return EmbedText(ctx, c.httpClient, c.cfg, prepared)
}

// EmbedQuery embeds a single user/rewritten query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := EmbedText(ctx, c.httpClient, c.cfg, []string{queryInstructionPrefix + text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("embedding: no vector returned for query")
	}
	return out[0], nil
}
