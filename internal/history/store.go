// Package history defines the conversation turn log. Every completed
// exchange (transcript in, reply out) is appended so sessions can be
// reviewed after the fact. Logging is best effort: a failed write never
// blocks or aborts a turn.
package history

import (
	"context"
	"time"
)

// Turn is one logged exchange.
type Turn struct {
	// StartedAt is when the utterance capture that produced this turn
	// began.
	StartedAt time.Time `json:"started_at"`
	// Mode is the conversation mode the turn ran in ("standby" or
	// "conversing").
	Mode string `json:"mode"`
	// Transcript is what speech-to-text produced, or a pipeline sentinel.
	Transcript string `json:"transcript"`
	// Reply is the assistant's answer.
	Reply string `json:"reply"`
	// HeldOpen reports whether the reply kept the conversation open.
	HeldOpen bool `json:"held_open"`
	// CaptureDuration is the wall-clock length of the captured utterance.
	CaptureDuration time.Duration `json:"capture_duration_ns"`
	// TurnDuration is the full capture-to-reply latency.
	TurnDuration time.Duration `json:"turn_duration_ns"`
}

// Store persists turns.
type Store interface {
	// Append writes one turn.
	Append(ctx context.Context, turn Turn) error

	// Recent returns up to limit turns, newest first.
	Recent(ctx context.Context, limit int) ([]Turn, error)

	// Ping reports whether the store is reachable, for readiness checks.
	Ping(ctx context.Context) error

	// Close releases the store's connections.
	Close()
}
