// Package openai implements [stt.Transcriber] against the OpenAI audio
// transcription endpoint.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/provider/stt"
)

const defaultModel = "whisper-1"

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber uploads the captured utterance as a WAV file and returns the
// endpoint's transcription.
type Transcriber struct {
	client   oai.Client
	model    string
	language string
}

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithModel overrides the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

// WithLanguage pins the input language as an ISO-639-1 code. Empty lets the
// endpoint auto-detect.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// New creates a Transcriber authenticated with the given API key.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key must not be empty")
	}
	t := &Transcriber{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe wraps the PCM in a WAV container and posts it to the
// transcription endpoint.
func (t *Transcriber) Transcribe(ctx context.Context, samples audio.Frame, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	wavBytes, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("openai: wrap utterance: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wavBytes), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcribe utterance: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Close is a no-op; the HTTP client holds no resources worth releasing.
func (t *Transcriber) Close() error { return nil }
