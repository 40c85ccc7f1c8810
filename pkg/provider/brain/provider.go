// Package brain defines the dialogue contract. The brain receives each
// user transcript and produces the assistant's spoken reply; it owns the
// conversation memory behind that exchange.
package brain

import "context"

// Sentinel transcripts the pipeline sends instead of user speech. The brain
// treats them as conversational events, not words the user said.
const (
	// SentinelTimeout signals that the user stopped responding and the
	// conversation is being closed.
	SentinelTimeout = "__TIMEOUT__"
	// SentinelEmptySTT signals that audio was captured but nothing
	// intelligible was recognized; the brain should ask the user to repeat
	// themselves.
	SentinelEmptySTT = "__EMPTY_STT__"
)

// IsSentinel reports whether the transcript is one of the pipeline's
// sentinel values.
func IsSentinel(transcript string) bool {
	return transcript == SentinelTimeout || transcript == SentinelEmptySTT
}

// Brain turns a transcript into the assistant's reply.
//
// Reply blocks until the reply is ready. An error means the exchange failed
// entirely; the caller degrades the turn rather than crashing the pipeline.
type Brain interface {
	// Reply produces the assistant's answer to the given transcript, which
	// may be a sentinel.
	Reply(ctx context.Context, transcript string) (string, error)

	// Reset clears the conversation memory, starting the next exchange
	// from a blank slate.
	Reset()

	// Close releases any connections held by the brain.
	Close() error
}
