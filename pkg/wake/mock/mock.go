// Package mock provides a scripted [wake.Detector] for tests.
package mock

import (
	"sync"

	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/wake"
)

var _ wake.Detector = (*Detector)(nil)

// Detector fires on a fixed schedule of frame indices. Every Detect call
// outside the schedule returns false.
type Detector struct {
	mu sync.Mutex

	// FireAt holds zero-based Detect call indices that report a detection.
	FireAt []int
	// Err, when set, is returned by every Detect call.
	Err error
	// Len is the reported frame length. Defaults to 512.
	Len int

	// Calls counts Detect invocations.
	Calls int
	// Closed reports whether Close was called.
	Closed bool
}

// Detect implements [wake.Detector].
func (d *Detector) Detect(_ audio.Frame) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.Calls
	d.Calls++
	if d.Err != nil {
		return false, d.Err
	}
	for _, at := range d.FireAt {
		if at == idx {
			return true, nil
		}
	}
	return false, nil
}

// FrameLength implements [wake.Detector].
func (d *Detector) FrameLength() int {
	if d.Len == 0 {
		return 512
	}
	return d.Len
}

// Close implements [wake.Detector].
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}
