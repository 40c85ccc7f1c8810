// Package stt defines the speech-to-text contract used to turn captured
// utterances into text.
package stt

import (
	"context"

	"github.com/earshot-dev/earshot/pkg/audio"
)

// Transcriber converts one complete utterance into text.
//
// The pipeline captures a whole utterance first and transcribes it in one
// shot; there is no streaming contract. Implementations receive the raw
// mono PCM samples and the rate they were captured at.
type Transcriber interface {
	// Transcribe returns the recognized text, trimmed of surrounding
	// whitespace. An empty string with a nil error means the recognizer
	// genuinely heard nothing.
	Transcribe(ctx context.Context, samples audio.Frame, sampleRate int) (string, error)

	// Close releases any loaded models or connections.
	Close() error
}
