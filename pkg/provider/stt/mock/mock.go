// Package mock provides a scripted [stt.Transcriber] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/provider/stt"
)

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber returns scripted transcripts in order. Once the script is
// exhausted it returns empty strings.
type Transcriber struct {
	mu sync.Mutex

	// Results is consumed front to back, one entry per Transcribe call.
	Results []string
	// Err, when set, is returned by every Transcribe call.
	Err error

	// Calls records the sample count of every Transcribe invocation.
	Calls []int
	// Closed reports whether Close was called.
	Closed bool
}

// Transcribe implements [stt.Transcriber].
func (t *Transcriber) Transcribe(_ context.Context, samples audio.Frame, _ int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, len(samples))
	if t.Err != nil {
		return "", t.Err
	}
	if len(t.Results) == 0 {
		return "", nil
	}
	r := t.Results[0]
	t.Results = t.Results[1:]
	return r, nil
}

// Close implements [stt.Transcriber].
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return nil
}
