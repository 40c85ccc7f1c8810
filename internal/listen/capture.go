// Package listen contains the microphone-side pipeline stages: utterance
// capture with loudness-gated voice activity detection, and echo drainage
// around the assistant's own playback.
package listen

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/earshot-dev/earshot/pkg/audio"
)

// CaptureConfig tunes the voice activity detection. The zero value is not
// usable; start from [DefaultCaptureConfig].
type CaptureConfig struct {
	// Levels are the loudness thresholds for the hysteresis gate.
	Levels audio.Levels
	// PreRollFrames is how many recent above-floor frames are kept while
	// waiting for speech, so the first syllable isn't clipped.
	PreRollFrames int
	// SilenceEndRun is the consecutive-quiet-frame count that ends an
	// utterance.
	SilenceEndRun int
	// MinSpeechFrames is the minimum count of voiced frames an utterance
	// needs to be kept. Anything at or below it is discarded as noise.
	MinSpeechFrames int
}

// DefaultCaptureConfig matches a near-field microphone at 16 kHz with
// 512-sample frames.
var DefaultCaptureConfig = CaptureConfig{
	Levels:          audio.DefaultLevels,
	PreRollFrames:   6,
	SilenceEndRun:   12,
	MinSpeechFrames: 4,
}

// Validate checks the gate thresholds and frame counts.
func (c CaptureConfig) Validate() error {
	if err := c.Levels.Validate(); err != nil {
		return fmt.Errorf("listen: levels: %w", err)
	}
	if c.PreRollFrames < 0 {
		return fmt.Errorf("listen: pre-roll frames must not be negative")
	}
	if c.SilenceEndRun <= 0 {
		return fmt.Errorf("listen: silence end run must be positive")
	}
	if c.MinSpeechFrames <= 0 {
		return fmt.Errorf("listen: min speech frames must be positive")
	}
	return nil
}

// CaptureStats reports what happened during one Capture call.
type CaptureStats struct {
	// FramesRead is the total number of frames consumed, including the
	// waiting period.
	FramesRead int
	// SpeechFrames is the voiced-frame count of the returned utterance.
	SpeechFrames int
	// FalseStarts counts noise bursts that opened and were then discarded
	// within this call.
	FalseStarts int
	// Duration is the wall-clock length of the returned utterance.
	Duration time.Duration
}

// Capturer segments single utterances out of a frame source.
//
// The capture state machine: frames are discarded until one exceeds the
// start threshold, with a short pre-roll of recent above-floor frames kept
// so the utterance opens a beat before the trigger. Once open, every frame
// is collected; a run of quiet frames closes the utterance, and a long
// quiet run with barely any voiced frames discards it as a false start and
// resumes waiting. The timeout bounds the whole call, counted in frames so
// a stalled device cannot hang it forever.
type Capturer struct {
	cfg    CaptureConfig
	gate   audio.Gate
	src    audio.Source
	logger *slog.Logger
}

// NewCapturer validates the config and builds a Capturer over the source.
func NewCapturer(src audio.Source, cfg CaptureConfig, logger *slog.Logger) (*Capturer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		cfg:    cfg,
		gate:   audio.Gate{Levels: cfg.Levels},
		src:    src,
		logger: logger,
	}, nil
}

// Capture records one utterance, blocking up to timeout. A nil utterance
// with a nil error means nothing worth keeping was heard: either the
// timeout expired in silence or everything captured was noise. The only
// error it returns is the source's fatal device error.
func (c *Capturer) Capture(timeout time.Duration) (audio.Frame, CaptureStats, error) {
	var (
		stats     CaptureStats
		utterance audio.Frame
		preRoll   []audio.Frame
		started   bool
		silence   int
		speech    int
	)

	frameDur := audio.FrameDuration(c.src.FrameLength(), c.src.SampleRate())
	maxFrames := int(timeout / frameDur)

	for i := 0; i < maxFrames; i++ {
		frame, err := c.src.ReadFrame()
		if err != nil {
			return nil, stats, err
		}
		stats.FramesRead++
		loudness := audio.RMS(frame)

		if !started {
			// Keep a short tail of recent non-ambient frames so the start
			// of the word survives the trigger latency.
			if !c.gate.IsAmbient(loudness) {
				preRoll = append(preRoll, frame.Clone())
				if len(preRoll) > c.cfg.PreRollFrames {
					preRoll = preRoll[1:]
				}
			}
			if c.gate.IsSpeechStart(loudness) {
				started = true
				silence = 0
				for _, f := range preRoll {
					utterance = append(utterance, f...)
				}
				preRoll = preRoll[:0]
			}
			continue
		}

		utterance = append(utterance, frame...)
		if c.gate.IsSilence(loudness) {
			silence++
		} else {
			silence = 0
			speech++
		}

		if silence > c.cfg.SilenceEndRun && speech > c.cfg.MinSpeechFrames {
			break
		}

		// A long quiet stretch with barely any voiced frames means the
		// trigger was a noise burst. Throw it away and keep waiting.
		if silence > c.cfg.SilenceEndRun*2 && speech <= c.cfg.MinSpeechFrames {
			utterance = utterance[:0]
			started = false
			silence = 0
			speech = 0
			stats.FalseStarts++
		}
	}

	if speech <= c.cfg.MinSpeechFrames {
		return nil, stats, nil
	}

	stats.SpeechFrames = speech
	stats.Duration = time.Duration(len(utterance)) * time.Second / time.Duration(c.src.SampleRate())
	c.logger.Debug("captured utterance",
		"duration", stats.Duration,
		"speech_frames", speech,
		"false_starts", stats.FalseStarts)
	return utterance, stats, nil
}
