// Package piper implements [tts.Speaker] by shelling out to the piper
// synthesizer and playing the raw output through aplay. Both binaries must
// be on PATH.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/earshot-dev/earshot/pkg/provider/tts"
)

// piper's raw output format for the voices we ship: mono S16_LE at 22.05 kHz.
const outputRate = 22050

// ackLeadTime is how long Play waits after spawning the player so the start
// of the phrase is audible before capture resumes.
const ackLeadTime = 600 * time.Millisecond

var (
	_ tts.Speaker  = (*Speaker)(nil)
	_ tts.AckCache = (*Speaker)(nil)
)

// Speaker synthesizes with piper and plays through aplay. Speak calls are
// serialized; overlapping replies would talk over each other.
type Speaker struct {
	modelPath string
	piperBin  string
	aplayBin  string

	mu  sync.Mutex
	ack []byte
}

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

// WithPiperBinary overrides the piper executable path.
func WithPiperBinary(path string) Option {
	return func(s *Speaker) { s.piperBin = path }
}

// WithAplayBinary overrides the aplay executable path.
func WithAplayBinary(path string) Option {
	return func(s *Speaker) { s.aplayBin = path }
}

// New creates a Speaker for the given piper voice model.
func New(modelPath string, opts ...Option) (*Speaker, error) {
	if modelPath == "" {
		return nil, errors.New("piper: model path must not be empty")
	}
	s := &Speaker{
		modelPath: modelPath,
		piperBin:  "piper",
		aplayBin:  "aplay",
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Speak synthesizes the text and blocks until playback finishes.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.synthesize(ctx, text)
	if err != nil {
		return err
	}
	return s.play(ctx, raw, true)
}

// Prime synthesizes the acknowledgement phrase into memory.
func (s *Speaker) Prime(ctx context.Context, phrase string) error {
	if phrase == "" {
		return errors.New("piper: ack phrase must not be empty")
	}
	raw, err := s.synthesize(ctx, phrase)
	if err != nil {
		return fmt.Errorf("piper: prime ack: %w", err)
	}
	s.mu.Lock()
	s.ack = raw
	s.mu.Unlock()
	return nil
}

// Play replays the cached acknowledgement in the background and returns once
// the audio is underway.
func (s *Speaker) Play() error {
	s.mu.Lock()
	raw := s.ack
	s.mu.Unlock()
	if len(raw) == 0 {
		return errors.New("piper: ack cache not primed")
	}
	if err := s.play(context.Background(), raw, false); err != nil {
		return err
	}
	time.Sleep(ackLeadTime)
	return nil
}

// Close is a no-op; piper runs per-invocation.
func (s *Speaker) Close() error { return nil }

func (s *Speaker) synthesize(ctx context.Context, text string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, s.piperBin, "--model", s.modelPath, "--output_raw")
	cmd.Stdin = bytes.NewBufferString(text)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper: synthesize: %w", err)
	}
	if out.Len() == 0 {
		return nil, errors.New("piper: synthesizer produced no audio")
	}
	return out.Bytes(), nil
}

// play pipes raw PCM to aplay. When wait is false the player is left running
// in the background and only the spawn is checked.
func (s *Speaker) play(ctx context.Context, raw []byte, wait bool) error {
	cmd := exec.CommandContext(ctx, s.aplayBin,
		"-q",
		"-r", strconv.Itoa(outputRate),
		"-f", "S16_LE",
		"-t", "raw",
		"-")
	cmd.Stdin = bytes.NewReader(raw)
	if wait {
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("piper: play audio: %w", err)
		}
		return nil
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("piper: start player: %w", err)
	}
	go cmd.Wait()
	return nil
}
