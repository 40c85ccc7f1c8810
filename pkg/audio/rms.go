package audio

import (
	"errors"
	"math"
)

// RMS computes the root-mean-square amplitude of a frame. An empty frame has
// an RMS of zero.
func RMS(f Frame) float64 {
	if len(f) == 0 {
		return 0
	}
	var sum float64
	for _, s := range f {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(f)))
}

// Levels holds the three loudness thresholds used to segment speech out of
// the frame stream. They form a hysteresis band: a frame must exceed
// StartThreshold to open an utterance, and the utterance only closes after a
// run of frames below EndThreshold. NoiseFloor sits below both and screens
// out sources too quiet to ever qualify as speech.
type Levels struct {
	// NoiseFloor is the RMS below which a frame is treated as pure ambience.
	NoiseFloor float64
	// EndThreshold is the RMS below which a frame counts toward ending an
	// open utterance.
	EndThreshold float64
	// StartThreshold is the RMS a frame must exceed to start an utterance.
	StartThreshold float64
}

// DefaultLevels are the thresholds tuned for a near-field USB microphone at
// 16 kHz.
var DefaultLevels = Levels{
	NoiseFloor:     150,
	EndThreshold:   180,
	StartThreshold: 320,
}

// Validate ensures the thresholds are strictly ordered. The hysteresis logic
// is only sound when NoiseFloor < EndThreshold < StartThreshold.
func (l Levels) Validate() error {
	var errs []error
	if l.NoiseFloor <= 0 {
		errs = append(errs, errors.New("noise floor must be positive"))
	}
	if l.EndThreshold <= l.NoiseFloor {
		errs = append(errs, errors.New("end threshold must be above the noise floor"))
	}
	if l.StartThreshold <= l.EndThreshold {
		errs = append(errs, errors.New("start threshold must be above the end threshold"))
	}
	return errors.Join(errs...)
}

// Gate classifies per-frame loudness against a set of [Levels]. It takes the
// RMS value rather than the frame so callers compute it once per frame; it
// carries no state, the utterance capturer owns the hysteresis bookkeeping.
type Gate struct {
	Levels Levels
}

// IsSpeechStart reports whether the loudness is enough to open an utterance.
func (g Gate) IsSpeechStart(loudness float64) bool {
	return loudness > g.Levels.StartThreshold
}

// IsSilence reports whether the loudness counts toward closing an open
// utterance.
func (g Gate) IsSilence(loudness float64) bool {
	return loudness < g.Levels.EndThreshold
}

// IsAmbient reports whether the loudness is at or below the noise floor.
func (g Gate) IsAmbient(loudness float64) bool {
	return loudness <= g.Levels.NoiseFloor
}
