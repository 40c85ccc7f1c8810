// Package audio defines the frame types and device abstractions shared by the
// capture pipeline. All audio in the pipeline is mono 16-bit signed PCM; the
// sample rate and frame length are fixed at device open time and reported by
// the [Source].
package audio

import (
	"fmt"
	"time"
)

// Frame is a single fixed-length block of mono 16-bit PCM samples. Frames are
// the atomic unit of transport through the pipeline: the source produces them,
// the wake-word detector and loudness gate consume them, and captured
// utterances are concatenations of them.
type Frame []int16

// Clone returns a copy of the frame that does not alias the receiver's
// backing array. Sources are allowed to reuse their read buffer between
// calls, so anything that retains a frame must clone it first.
func (f Frame) Clone() Frame {
	c := make(Frame, len(f))
	copy(c, f)
	return c
}

// Source produces a steady stream of frames from an audio input device.
//
// ReadFrame blocks until a full frame is available. Implementations must
// recover transparently from transient device glitches (buffer overruns,
// short reads) by retrying internally; only unrecoverable device failures
// are returned, wrapped in a [*DeviceError]. The returned frame may alias an
// internal buffer that is overwritten by the next ReadFrame call.
type Source interface {
	// ReadFrame returns the next frame of audio. The error, when non-nil,
	// is always a *DeviceError and means the device is gone for good.
	ReadFrame() (Frame, error)

	// FrameLength is the number of samples per frame.
	FrameLength() int

	// SampleRate is the capture rate in Hz.
	SampleRate() int

	// Close releases the device. ReadFrame must not be called afterwards.
	Close() error
}

// DeviceError reports an unrecoverable audio device failure. Transient
// conditions (overruns, underruns) never surface as a DeviceError; if one is
// returned the process cannot continue capturing and should exit.
type DeviceError struct {
	// Op is the device operation that failed, e.g. "read" or "open".
	Op string
	// Err is the underlying driver error.
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio: device %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// FrameDuration returns the wall-clock length of one frame at the given
// sample rate.
func FrameDuration(frameLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frameLen) * time.Second / time.Duration(sampleRate)
}
