// Package anthropic implements provider.Chat on the Anthropic Messages API.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/luno/jettison/errors"

	"github.com/loomworks/loom/provider"
)

// Options configure the Anthropic client.
type Options struct {
	APIKey    string
	Model     anthropic.Model
	MaxTokens int64
}

// Client implements provider.Chat.
type Client struct {
	client anthropic.Client
	opts   Options
}

// New returns a client for the given options.
func New(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = anthropic.ModelClaude3_5SonnetLatest
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}

	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Client{client: anthropic.NewClient(reqOpts...), opts: opts}
}

// Complete performs a single-turn message completion and concatenates
// the text blocks of the response.
func (c *Client) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	maxTokens := c.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.opts.Model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "anthropic message")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

var _ provider.Chat = (*Client)(nil)
