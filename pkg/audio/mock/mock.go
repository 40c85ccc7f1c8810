// Package mock provides a scripted [audio.Source] for tests.
package mock

import (
	"errors"
	"sync"

	"github.com/earshot-dev/earshot/pkg/audio"
)

var _ audio.Source = (*Source)(nil)

// Source replays a scripted sequence of frames. Once the script is
// exhausted it keeps returning Fill (a silent frame by default), so tests
// that drain past the scripted audio see endless silence rather than an
// error. Set Err to make ReadFrame fail once the script runs out instead.
type Source struct {
	mu sync.Mutex

	// Frames is the script, consumed front to back.
	Frames []audio.Frame
	// Fill is returned after the script is exhausted. When nil, a zeroed
	// frame of Len samples is used.
	Fill audio.Frame
	// Err, when set, is returned after the script is exhausted instead of
	// Fill frames.
	Err error
	// Len is the reported frame length. Defaults to 512.
	Len int
	// Rate is the reported sample rate. Defaults to 16000.
	Rate int

	// Reads counts ReadFrame calls, including ones served from Fill.
	Reads int
	// Closed reports whether Close was called.
	Closed bool
}

// Silence returns a zeroed frame of n samples.
func Silence(n int) audio.Frame { return make(audio.Frame, n) }

// Tone returns a frame of n samples alternating between +amp and -amp. Its
// RMS is amp, which makes thresholds in tests easy to reason about.
func Tone(n int, amp int16) audio.Frame {
	f := make(audio.Frame, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = amp
		} else {
			f[i] = -amp
		}
	}
	return f
}

// ReadFrame pops the next scripted frame.
func (s *Source) ReadFrame() (audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	if len(s.Frames) > 0 {
		f := s.Frames[0]
		s.Frames = s.Frames[1:]
		return f, nil
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Fill != nil {
		return s.Fill, nil
	}
	return Silence(s.FrameLength()), nil
}

// FrameLength implements [audio.Source].
func (s *Source) FrameLength() int {
	if s.Len == 0 {
		return 512
	}
	return s.Len
}

// SampleRate implements [audio.Source].
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed {
		return errors.New("mock: source closed twice")
	}
	s.Closed = true
	return nil
}
