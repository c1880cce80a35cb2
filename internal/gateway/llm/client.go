// Package llm adapts an OpenAI-compatible chat endpoint (e.g. Ollama) to the
// text-generation gateway used by the composers.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aliskhannn/meme-generator/internal/config"
	"github.com/aliskhannn/meme-generator/internal/gateway"
)

// Client is a thin synchronous adapter over the chat completion API.
// Every call enforces the configured per-call timeout.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a Client for the endpoint described by cfg.
func NewClient(cfg config.LLM) *Client {
	apiCfg := openai.DefaultConfig("")
	apiCfg.BaseURL = cfg.BaseURL

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the ordered role-tagged messages and returns the generated
// text. Transport failures are normalized into the gateway error set.
func (c *Client) Complete(ctx context.Context, messages []gateway.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return "", gateway.Classify(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", gateway.ErrInvalidResponse)
	}

	return resp.Choices[0].Message.Content, nil
}
