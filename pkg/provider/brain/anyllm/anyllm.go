// Package anyllm provides a universal dialogue brain backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	b, err := anyllm.New("openai", "gpt-4o-mini", nil, anyllmlib.WithAPIKey("sk-..."))
//	b, err := anyllm.NewAnthropic("claude-3-5-haiku-latest", nil, anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/earshot-dev/earshot/pkg/provider/brain"
)

// keep the rolling history bounded so long sessions don't grow the prompt
// without limit. Counted in messages, system prompt excluded.
const maxHistory = 40

var _ brain.Brain = (*Brain)(nil)

// Brain implements brain.Brain by wrapping github.com/mozilla-ai/any-llm-go.
// It keeps the conversation history in memory between Reply calls.
type Brain struct {
	backend anyllmlib.Provider
	model   string
	system  string

	mu      sync.Mutex
	history []anyllmlib.Message
}

// Option is a functional option for configuring a Brain.
type Option func(*Brain)

// WithSystemPrompt sets the persona prompt prepended to every exchange.
func WithSystemPrompt(prompt string) Option {
	return func(b *Brain) { b.system = prompt }
}

// New creates a Brain backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". model is the
// specific model to use (e.g. "gpt-4o-mini").
//
// backendOpts are any-llm-go options (e.g. anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the backend
// falls back to its environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY,
// and so on).
func New(providerName, model string, opts []Option, backendOpts ...anyllmlib.Option) (*Brain, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	backend, err := createBackend(providerName, backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	b := &Brain{backend: backend, model: model}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// NewOpenAI creates a Brain backed by OpenAI.
func NewOpenAI(model string, opts []Option, backendOpts ...anyllmlib.Option) (*Brain, error) {
	return New("openai", model, opts, backendOpts...)
}

// NewAnthropic creates a Brain backed by Anthropic.
func NewAnthropic(model string, opts []Option, backendOpts ...anyllmlib.Option) (*Brain, error) {
	return New("anthropic", model, opts, backendOpts...)
}

// NewOllama creates a Brain backed by Ollama (local inference). Without
// backend options it connects to http://localhost:11434.
func NewOllama(model string, opts []Option, backendOpts ...anyllmlib.Option) (*Brain, error) {
	return New("ollama", model, opts, backendOpts...)
}

// Reply sends the transcript with the accumulated history and appends both
// sides of the exchange to it.
func (b *Brain) Reply(ctx context.Context, transcript string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var messages []anyllmlib.Message
	if b.system != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: b.system,
		})
	}
	messages = append(messages, b.history...)
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: transcript,
	})

	resp, err := b.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model:    b.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.ContentString())

	// Sentinel exchanges are pipeline events, not dialogue; keeping them in
	// the rolling history would teach the model to echo them back.
	if !brain.IsSentinel(transcript) {
		b.history = append(b.history,
			anyllmlib.Message{Role: anyllmlib.RoleUser, Content: transcript},
			anyllmlib.Message{Role: anyllmlib.RoleAssistant, Content: reply},
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

// Close is a no-op; the backends hold no closable resources.
func (b *Brain) Close() error { return nil }

// createBackend creates the underlying any-llm-go provider for the given
// provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}
