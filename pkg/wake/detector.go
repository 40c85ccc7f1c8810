// Package wake defines the wake-word detection contract. A detector watches
// the raw frame stream during standby and reports when the activation phrase
// was heard.
package wake

import "github.com/earshot-dev/earshot/pkg/audio"

// Detector scans individual audio frames for the wake phrase. Implementations
// dictate the frame length they need via FrameLength; the audio source must
// be opened to match.
type Detector interface {
	// Detect processes one frame and reports whether the wake phrase
	// completed within it. Errors are transient per-frame failures: the
	// caller logs them and keeps feeding frames.
	Detect(frame audio.Frame) (bool, error)

	// FrameLength is the number of samples per frame the detector expects.
	FrameLength() int

	// Close releases the underlying engine.
	Close() error
}
