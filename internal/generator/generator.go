// Package generator wraps the chat-completion model used by the ingestion
// and query pipelines (identity cards, structural enrichment, query
// rewriting, and final answer assembly). It narrows the teacher's
// multi-provider client down to the single OpenAI-compatible surface this
// domain needs: plain completion, JSON-mode completion, and multimodal
// completion with image attachments.
package generator

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"studycore/internal/config"
)

// Client is the generator (C4 text-generation half, also driving C5's
// identity card and C6's enrichment prompts, and C7/C8's rewrite and
// answer steps).
type Client struct {
	sdk     sdk.Client
	model   string
	timeout time.Duration
}

// NewClient builds a generator client from configuration.
func NewClient(cfg config.GeneratorConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Client{sdk: sdk.NewClient(opts...), model: cfg.Model, timeout: timeout}
}

// ImageRef is a single image attached to a multimodal user message,
// addressed by URL (the blob store's public URL) rather than inline bytes.
type ImageRef struct {
	URL string
}

// Complete runs a plain text chat completion.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(system),
			sdk.UserMessage(user),
		},
		Temperature: param.NewOpt(temperature),
		MaxTokens:   param.NewOpt(int64(maxTokens)),
	}
	resp, err := c.sdk.Chat.Completions.New(cctx, params)
	if err != nil {
		return "", fmt.Errorf("generator: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generator: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON runs a chat completion constrained to a single JSON object,
// used for structured extraction (enrichment visual_summary/entities).
func (c *Client) CompleteJSON(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(system),
			sdk.UserMessage(user),
		},
		Temperature: param.NewOpt(temperature),
		MaxTokens:   param.NewOpt(int64(maxTokens)),
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	resp, err := c.sdk.Chat.Completions.New(cctx, params)
	if err != nil {
		return "", fmt.Errorf("generator: json completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generator: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteMultimodal runs a chat completion where the user message carries
// text plus zero or more image parts at "low" detail (C8's final answer
// step, attaching surviving context images).
func (c *Client) CompleteMultimodal(ctx context.Context, system, user string, images []ImageRef, temperature float64, maxTokens int) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []sdk.ChatCompletionContentPartUnionParam{
		{OfText: &sdk.ChatCompletionContentPartTextParam{Text: user}},
	}
	for _, img := range images {
		parts = append(parts, sdk.ChatCompletionContentPartUnionParam{
			OfImageURL: &sdk.ChatCompletionContentPartImageParam{
				ImageURL: sdk.ChatCompletionContentPartImageImageURLParam{
					URL:    img.URL,
					Detail: "low",
				},
			},
		})
	}
	userMsg := sdk.ChatCompletionUserMessageParam{
		Content: sdk.ChatCompletionUserMessageParamContentUnion{OfArrayOfContentParts: parts},
	}
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(system),
			{OfUser: &userMsg},
		},
		Temperature: param.NewOpt(temperature),
		MaxTokens:   param.NewOpt(int64(maxTokens)),
	}
	resp, err := c.sdk.Chat.Completions.New(cctx, params)
	if err != nil {
		return "", fmt.Errorf("generator: multimodal completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generator: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
