package listen

import (
	"fmt"
	"strings"
	"time"

	"github.com/earshot-dev/earshot/pkg/audio"
)

// DrainConfig tunes the echo drainage performed around the assistant's own
// playback.
type DrainConfig struct {
	// SilentRMS is the loudness below which a frame counts as quiet during
	// DrainUntilSilent. It sits far above the speech thresholds because
	// playback echo is loud.
	SilentRMS float64
	// SilentRun is the consecutive-quiet-frame count that ends a
	// DrainUntilSilent early.
	SilentRun int
}

// DefaultDrainConfig matches playback through a desktop speaker next to the
// microphone.
var DefaultDrainConfig = DrainConfig{
	SilentRMS: 900,
	SilentRun: 15,
}

// Validate checks the drain parameters.
func (c DrainConfig) Validate() error {
	if c.SilentRMS <= 0 {
		return fmt.Errorf("listen: silent rms must be positive")
	}
	if c.SilentRun <= 0 {
		return fmt.Errorf("listen: silent run must be positive")
	}
	return nil
}

// Drainer discards microphone input that would otherwise be captured as if
// the user had spoken: the tail of the wake word, the assistant's own
// playback bleeding into the mic, and the room reverb after it.
type Drainer struct {
	cfg DrainConfig
	src audio.Source
}

// NewDrainer validates the config and builds a Drainer over the source.
func NewDrainer(src audio.Source, cfg DrainConfig) (*Drainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Drainer{cfg: cfg, src: src}, nil
}

// DrainFixed reads and discards exactly n frames. It returns the number of
// frames discarded and the source's fatal error, if any.
func (d *Drainer) DrainFixed(n int) (int, error) {
	for i := 0; i < n; i++ {
		if _, err := d.src.ReadFrame(); err != nil {
			return i, err
		}
	}
	return n, nil
}

// DrainUntilSilent discards frames until a run of quiet ones shows the echo
// has died down, or until maxWait expires. The deadline is counted in
// frames, so disposal is bounded even if the room never goes quiet.
func (d *Drainer) DrainUntilSilent(maxWait time.Duration) (int, error) {
	frameDur := audio.FrameDuration(d.src.FrameLength(), d.src.SampleRate())
	maxFrames := int(maxWait / frameDur)

	quiet := 0
	for i := 0; i < maxFrames; i++ {
		frame, err := d.src.ReadFrame()
		if err != nil {
			return i, err
		}
		if audio.RMS(frame) < d.cfg.SilentRMS {
			quiet++
			if quiet >= d.cfg.SilentRun {
				return i + 1, nil
			}
		} else {
			quiet = 0
		}
	}
	return maxFrames, nil
}

// ReplyDrainFrames is the fixed-drain budget after speaking a reply,
// proportional to its word count. Longer replies ring in the room longer.
func ReplyDrainFrames(reply string) int {
	words := len(strings.Fields(reply))
	if words < 1 {
		words = 1
	}
	n := words * 20
	if n < 80 {
		n = 80
	}
	return n
}
