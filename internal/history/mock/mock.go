// Package mock provides an in-memory [history.Store] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-dev/earshot/internal/history"
)

var _ history.Store = (*Store)(nil)

// Store keeps appended turns in memory.
type Store struct {
	mu sync.Mutex

	// Err, when set, is returned by Append, Recent and Ping.
	Err error

	// Turns holds everything appended, oldest first.
	Turns []history.Turn
	// Closed reports whether Close was called.
	Closed bool
}

// Append implements [history.Store].
func (s *Store) Append(_ context.Context, turn history.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Turns = append(s.Turns, turn)
	return nil
}

// Recent implements [history.Store].
func (s *Store) Recent(_ context.Context, limit int) ([]history.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []history.Turn
	for i := len(s.Turns) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.Turns[i])
	}
	return out, nil
}

// Ping implements [history.Store].
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err
}

// Close implements [history.Store].
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
}
