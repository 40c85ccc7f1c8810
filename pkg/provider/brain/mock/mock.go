// Package mock provides a scripted [brain.Brain] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-dev/earshot/pkg/provider/brain"
)

var _ brain.Brain = (*Brain)(nil)

// Brain returns scripted replies in order and records every transcript it
// was handed. Once the script is exhausted it returns Fallback.
type Brain struct {
	mu sync.Mutex

	// Replies is consumed front to back, one entry per Reply call.
	Replies []string
	// Fallback is returned after the script is exhausted. Defaults to "ok".
	Fallback string
	// Err, when set, is returned by every Reply call.
	Err error

	// Inputs records every transcript passed to Reply, sentinels included.
	Inputs []string
	// Resets counts Reset calls.
	Resets int
	// Closed reports whether Close was called.
	Closed bool
}

// Reply implements [brain.Brain].
func (b *Brain) Reply(_ context.Context, transcript string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Inputs = append(b.Inputs, transcript)
	if b.Err != nil {
		return "", b.Err
	}
	if len(b.Replies) > 0 {
		r := b.Replies[0]
		b.Replies = b.Replies[1:]
		return r, nil
	}
	if b.Fallback != "" {
		return b.Fallback, nil
	}
	return "ok", nil
}

// Reset implements [brain.Brain].
func (b *Brain) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Resets++
}

// Close implements [brain.Brain].
func (b *Brain) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}
