// Package openai provides a dialogue brain that talks to the OpenAI chat
// completions API directly through the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/earshot-dev/earshot/pkg/provider/brain"
)

const maxHistory = 40

var _ brain.Brain = (*Brain)(nil)

type message struct {
	role    string // "user" or "assistant"
	content string
}

// Brain keeps a rolling chat history and replies through the OpenAI chat
// completions endpoint.
type Brain struct {
	client oai.Client
	model  string
	system string

	mu      sync.Mutex
	history []message
}

// Option is a functional option for configuring a Brain.
type Option func(*Brain)

// WithSystemPrompt sets the persona prompt prepended to every exchange.
func WithSystemPrompt(prompt string) Option {
	return func(b *Brain) { b.system = prompt }
}

// New creates a Brain authenticated with the given API key.
func New(apiKey, model string, opts ...Option) (*Brain, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	b := &Brain{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Reply implements [brain.Brain].
func (b *Brain) Reply(ctx context.Context, transcript string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var messages []oai.ChatCompletionMessageParamUnion
	if b.system != "" {
		messages = append(messages, oai.SystemMessage(b.system))
	}
	for _, m := range b.history {
		if m.role == "assistant" {
			messages = append(messages, oai.AssistantMessage(m.content))
		} else {
			messages = append(messages, oai.UserMessage(m.content))
		}
	}
	messages = append(messages, oai.UserMessage(transcript))

	resp, err := b.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(b.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)

	// Sentinel exchanges are pipeline events, not dialogue; keeping them in
	// the rolling history would teach the model to echo them back.
	if !brain.IsSentinel(transcript) {
		b.history = append(b.history,
			message{role: "user", content: transcript},
			message{role: "assistant", content: reply},
		)
		if len(b.history) > maxHistory {
			b.history = b.history[len(b.history)-maxHistory:]
		}
	}
	return reply, nil
}

// Reset drops the conversation history.
func (b *Brain) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

// Close is a no-op.
func (b *Brain) Close() error { return nil }
