// Package mock provides scripted [tts.Speaker] and [tts.AckCache]
// implementations for tests.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-dev/earshot/pkg/provider/tts"
)

var (
	_ tts.Speaker  = (*Speaker)(nil)
	_ tts.AckCache = (*Speaker)(nil)
)

// Speaker records everything it is asked to say.
type Speaker struct {
	mu sync.Mutex

	// Err, when set, is returned by Speak, Prime and Play.
	Err error

	// Spoken records every Speak text in order.
	Spoken []string
	// Primed holds the last Prime phrase.
	Primed string
	// AckPlays counts Play calls.
	AckPlays int
	// Closed reports whether Close was called.
	Closed bool
}

// Speak implements [tts.Speaker].
func (s *Speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Spoken = append(s.Spoken, text)
	return nil
}

// Prime implements [tts.AckCache].
func (s *Speaker) Prime(_ context.Context, phrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Primed = phrase
	return nil
}

// Play implements [tts.AckCache].
func (s *Speaker) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.AckPlays++
	return nil
}

// Close implements [tts.Speaker].
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
