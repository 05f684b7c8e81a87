// Package llm provides the keyword-extraction collaborator used by hybrid
// search to rewrite natural-language queries into lexical query terms.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// LLM answers a single prompt with a single completion. It is best-effort:
// callers degrade gracefully when it fails.
type LLM interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = openai.GPT4oMini

// OpenAIChat implements LLM over the OpenAI chat completions API.
type OpenAIChat struct {
	client *openai.Client
	model  string
}

// NewOpenAIChat creates a chat-backed LLM for the given API key and model.
// An empty model selects DefaultChatModel.
func NewOpenAIChat(apiKey, model string) (*OpenAIChat, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAIChat{client: openai.NewClient(apiKey), model: model}, nil
}

// NewOpenAIChatWithClient wraps an existing client, e.g. one configured for
// an Azure or compatible endpoint.
func NewOpenAIChatWithClient(client *openai.Client, model string) *OpenAIChat {
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAIChat{client: client, model: model}
}

// Invoke sends the prompt as a single user message and returns the first
// choice's content.
func (c *OpenAIChat) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
