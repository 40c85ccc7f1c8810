// Package portaudio provides an [audio.Source] backed by the system's
// default capture device via the PortAudio library.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/earshot-dev/earshot/pkg/audio"
)

// consecutive glitches tolerated before the device is declared dead.
const maxGlitchRun = 50

var _ audio.Source = (*Source)(nil)

// Source reads fixed-length frames from the default PortAudio input device.
// It is not safe for concurrent use; the pipeline has a single reader.
type Source struct {
	stream   *pa.Stream
	buf      []int16
	frameLen int
	rate     int
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open initializes PortAudio, opens the default mono input stream and starts
// it. The caller owns the returned source and must Close it to release the
// device and terminate the library.
func Open(sampleRate, frameLen int, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := pa.Initialize(); err != nil {
		return nil, &audio.DeviceError{Op: "init", Err: err}
	}
	buf := make([]int16, frameLen)
	stream, err := pa.OpenDefaultStream(1, 0, float64(sampleRate), frameLen, buf)
	if err != nil {
		pa.Terminate()
		return nil, &audio.DeviceError{Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, &audio.DeviceError{Op: "start", Err: err}
	}
	return &Source{
		stream:   stream,
		buf:      buf,
		frameLen: frameLen,
		rate:     sampleRate,
		logger:   logger,
	}, nil
}

// ReadFrame blocks until the device delivers a full frame. Input overflows
// are logged at debug level and retried; the frame that triggered the
// overflow is discarded and the next clean frame is returned. The returned
// frame aliases the stream buffer and is only valid until the next call.
func (s *Source) ReadFrame() (audio.Frame, error) {
	glitches := 0
	for {
		err := s.stream.Read()
		if err == nil {
			return audio.Frame(s.buf), nil
		}
		if errors.Is(err, pa.InputOverflowed) {
			glitches++
			if glitches >= maxGlitchRun {
				return nil, &audio.DeviceError{
					Op:  "read",
					Err: fmt.Errorf("%d consecutive overflows: %w", glitches, err),
				}
			}
			s.logger.Debug("input overflow, retrying", "run", glitches)
			continue
		}
		return nil, &audio.DeviceError{Op: "read", Err: err}
	}
}

// FrameLength is the number of samples per frame.
func (s *Source) FrameLength() int { return s.frameLen }

// SampleRate is the capture rate in Hz.
func (s *Source) SampleRate() int { return s.rate }

// Close stops the stream and terminates the PortAudio library. It is safe to
// call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		if err := pa.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("terminate: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
