package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5"

// Anthropic answers through the messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic provider. An empty model selects Claude Haiku.
func NewAnthropic(apiKey, model string, maxTokens int) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	m := anthropic.Model(DefaultAnthropicModel)
	if model != "" {
		m = anthropic.Model(model)
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: &client, model: m, maxTokens: int64(maxTokens)}
}

func (c *Anthropic) Name() string  { return "anthropic" }
func (c *Anthropic) Model() string { return string(c.model) }

func (c *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
