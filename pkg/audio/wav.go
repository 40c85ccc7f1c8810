package audio

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps raw mono PCM samples in a RIFF/WAVE container. Cloud STT
// endpoints want a self-describing container rather than bare PCM, and the
// container is also what the optional utterance dump writes to disk.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	ib := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finalize wav: %w", err)
	}
	return buf.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder seeks back to
// patch the chunk sizes on Close, which rules out a plain bytes.Buffer.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		if need > cap(b.data) {
			grown := make([]byte, len(b.data), need+1024)
			copy(grown, b.data)
			b.data = grown
		}
		b.data = b.data[:need]
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid seek whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: negative seek position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}
