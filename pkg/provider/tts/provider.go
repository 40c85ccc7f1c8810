// Package tts defines the speech synthesis contract used to voice the
// assistant's replies.
package tts

import "context"

// Speaker voices text through the output device.
//
// Speak blocks until playback has finished; the pipeline relies on that to
// time its echo drainage after each reply.
type Speaker interface {
	// Speak synthesizes and plays the given text.
	Speak(ctx context.Context, text string) error

	// Close releases the synthesis engine.
	Close() error
}

// AckCache plays a short pre-synthesized acknowledgement. The wake response
// has to land near-instantly, so the phrase is rendered once at startup and
// replayed from memory.
//
// Play is fire-and-forget: it starts playback in the background and returns
// after the audio is underway, without waiting for it to finish.
type AckCache interface {
	// Prime synthesizes the acknowledgement phrase into memory. Call once
	// at startup, before the first Play.
	Prime(ctx context.Context, phrase string) error

	// Play replays the cached audio. Playing an unprimed cache is an error.
	Play() error
}
