package listen

import (
	"errors"
	"testing"
	"time"

	"github.com/earshot-dev/earshot/pkg/audio"
	"github.com/earshot-dev/earshot/pkg/audio/mock"
)

func newDrainer(t *testing.T, src audio.Source) *Drainer {
	t.Helper()
	d, err := NewDrainer(src, DefaultDrainConfig)
	if err != nil {
		t.Fatalf("NewDrainer() error = %v", err)
	}
	return d
}

func TestDrainFixed(t *testing.T) {
	t.Parallel()

	src := &mock.Source{Fill: ambient, Len: frameLen, Rate: sampleRate}
	d := newDrainer(t, src)

	n, err := d.DrainFixed(25)
	if err != nil {
		t.Fatalf("DrainFixed() error = %v", err)
	}
	if n != 25 {
		t.Errorf("DrainFixed() = %d, want 25", n)
	}
	if src.Reads != 25 {
		t.Errorf("source reads = %d, want 25", src.Reads)
	}
}

func TestDrainUntilSilentStopsOnQuietRun(t *testing.T) {
	t.Parallel()

	// 5 frames of playback echo (RMS 1000, above the 900 cutoff), then
	// room silence. The drain should stop after 15 consecutive quiet
	// frames.
	echo := mock.Tone(frameLen, 1000)
	src := &mock.Source{
		Frames: repeat(echo, 5),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	d := newDrainer(t, src)

	n, err := d.DrainUntilSilent(5 * time.Second)
	if err != nil {
		t.Fatalf("DrainUntilSilent() error = %v", err)
	}
	if n != 20 {
		t.Errorf("DrainUntilSilent() = %d frames, want 20", n)
	}
}

func TestDrainUntilSilentHonorsDeadline(t *testing.T) {
	t.Parallel()

	// The room never goes quiet; the deadline bounds the drain.
	echo := mock.Tone(frameLen, 1000)
	src := &mock.Source{Fill: echo, Len: frameLen, Rate: sampleRate}
	d := newDrainer(t, src)

	n, err := d.DrainUntilSilent(640 * time.Millisecond)
	if err != nil {
		t.Fatalf("DrainUntilSilent() error = %v", err)
	}
	if n != 20 {
		t.Errorf("DrainUntilSilent() = %d frames, want the 20-frame deadline", n)
	}
}

func TestDrainUntilSilentResetsOnLoudFrame(t *testing.T) {
	t.Parallel()

	// 10 quiet frames, an echo spike, then quiet again: the run must
	// restart after the spike.
	echo := mock.Tone(frameLen, 1000)
	src := &mock.Source{
		Frames: script(repeat(quiet, 10), repeat(echo, 1)),
		Fill:   quiet,
		Len:    frameLen,
		Rate:   sampleRate,
	}
	d := newDrainer(t, src)

	n, err := d.DrainUntilSilent(5 * time.Second)
	if err != nil {
		t.Fatalf("DrainUntilSilent() error = %v", err)
	}
	if n != 26 {
		t.Errorf("DrainUntilSilent() = %d frames, want 26", n)
	}
}

func TestDrainPropagatesDeviceError(t *testing.T) {
	t.Parallel()

	src := &mock.Source{
		Err: &audio.DeviceError{Op: "read", Err: errors.New("gone")},
		Len: frameLen, Rate: sampleRate,
	}
	d := newDrainer(t, src)

	var devErr *audio.DeviceError
	if _, err := d.DrainFixed(5); !errors.As(err, &devErr) {
		t.Errorf("DrainFixed() error = %v, want a *audio.DeviceError", err)
	}
	if _, err := d.DrainUntilSilent(time.Second); !errors.As(err, &devErr) {
		t.Errorf("DrainUntilSilent() error = %v, want a *audio.DeviceError", err)
	}
}

func TestReplyDrainFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reply string
		want  int
	}{
		{"", 80},
		{"ok", 80},
		{"one two three", 80},
		{"w w w w", 80},
		{"a b c d e", 100},
		{"one two three four five six seven eight nine ten", 200},
	}
	for _, tt := range tests {
		if got := ReplyDrainFrames(tt.reply); got != tt.want {
			t.Errorf("ReplyDrainFrames(%q) = %d, want %d", tt.reply, got, tt.want)
		}
	}
}
