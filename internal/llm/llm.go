// Package llm wraps the Anthropic API behind a small completion
// interface so callers can be tested with fakes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultModel is used when no model is configured.
const DefaultModel = anthropic.ModelClaude3_5Haiku20241022

// Client generates text completions.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single completion request. A zero Temperature leaves the
// API default in place.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// AnthropicClient implements Client using the Anthropic API. The API
// key is read from the environment by the underlying SDK.
type AnthropicClient struct {
	log    *slog.Logger
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicClient(log *slog.Logger, model anthropic.Model) *AnthropicClient {
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicClient{
		log:    log,
		client: anthropic.NewClient(),
		model:  model,
	}
}

// Complete sends the prompt to Claude and returns the first text block
// of the response.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	c.log.Debug("sending completion request", "model", c.model, "max_tokens", req.MaxTokens, "prompt_len", len(req.Prompt))

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in response")
}
