package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/navada/insightlab/internal/config"
)

// ErrNotConfigured is returned when no provider key is available.
var ErrNotConfigured = errors.New("chat provider is not configured")

const basePrompt = "You are InsightLab AI Assistant, a senior UK AI job market analyst. " +
	"Answer questions about AI hiring in the UK concisely."

// Provider is a single LLM backend.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// ContextFunc returns the dataset prompt that grounds an answer.
type ContextFunc func(ctx context.Context) (string, error)

// Question is an incoming chat request.
type Question struct {
	Text           string `json:"message" validate:"required,max=2000"`
	IncludeSummary bool   `json:"include_summary"`
}

// Answer is the assistant reply.
type Answer struct {
	Text     string `json:"reply"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Bridge forwards questions to a provider with the dataset summary as system prompt.
type Bridge struct {
	provider Provider
	context  ContextFunc
	timeout  time.Duration
}

// NewBridge wires a provider to a summary source. A nil provider yields a bridge
// that answers every question with ErrNotConfigured.
func NewBridge(p Provider, ctxFn ContextFunc, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Bridge{provider: p, context: ctxFn, timeout: timeout}
}

// Configured reports whether a provider is attached.
func (b *Bridge) Configured() bool {
	return b != nil && b.provider != nil
}

// Ask sends q to the provider.
func (b *Bridge) Ask(ctx context.Context, q Question) (Answer, error) {
	if !b.Configured() {
		return Answer{}, ErrNotConfigured
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Answer{}, fmt.Errorf("empty question")
	}

	system := basePrompt
	if q.IncludeSummary && b.context != nil {
		prompt, err := b.context(ctx)
		if err != nil {
			return Answer{}, fmt.Errorf("load dataset context: %w", err)
		}
		if prompt != "" {
			system = prompt
		}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	reply, err := b.provider.Complete(ctx, system, text)
	if err != nil {
		return Answer{}, fmt.Errorf("%s completion: %w", b.provider.Name(), err)
	}

	return Answer{
		Text:     strings.TrimSpace(reply),
		Provider: b.provider.Name(),
		Model:    b.provider.Model(),
	}, nil
}

// FromConfig builds the provider selected by CHAT_PROVIDER. It returns
// ErrNotConfigured when the matching key is empty.
func FromConfig(ctx context.Context, cfg *config.API) (Provider, error) {
	switch cfg.ChatProvider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, ErrNotConfigured
		}
		return NewAnthropic(cfg.AnthropicKey, cfg.ChatModel, cfg.ChatMaxTokens), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, ErrNotConfigured
		}
		return NewGemini(ctx, cfg.GeminiKey, cfg.ChatModel)
	default:
		if cfg.OpenAIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.ChatModel), nil
	}
}
