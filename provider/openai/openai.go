// Package openai implements the provider interfaces on the OpenAI API.
package openai

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/loomworks/loom/provider"
)

// Options configure the OpenAI client. Fields mirror a deliberately
// small subset of the API surface.
type Options struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
}

// Client implements provider.Embedder and provider.Chat.
type Client struct {
	client openai.Client
	opts   Options
}

// New returns a client for the given options. Empty model names fall
// back to small, cheap defaults.
func New(opts Options) *Client {
	if opts.ChatModel == "" {
		opts.ChatModel = openai.ChatModelGPT4oMini
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
	}

	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{client: openai.NewClient(reqOpts...), opts: opts}
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: c.opts.EmbeddingModel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai embeddings")
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("openai returned wrong embedding count")
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Complete performs a single-turn chat completion.
func (c *Client) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       c.opts.ChatModel,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var (
	_ provider.Embedder = (*Client)(nil)
	_ provider.Chat     = (*Client)(nil)
)
