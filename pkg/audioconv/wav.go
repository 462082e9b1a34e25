package audioconv

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV16k renders mono 16 kHz float32 PCM as a 16-bit WAV blob,
// the shape the hosted transcription endpoint expects.
func EncodeWAV16k(pcm []float32) ([]byte, error) {
	ints := make([]int, len(pcm))
	for i, v := range pcm {
		ints[i] = int(clamp(float64(v), -1, 1) * 32767)
	}

	buf := &memWriteSeeker{}
	enc := wav.NewEncoder(buf, 16000, 16, 1, 1)

	err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		SourceBitDepth: 16,
		Data:           ints,
	})
	if err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav: %w", err)
	}

	return buf.data, nil
}

// memWriteSeeker backs the wav encoder, which needs to seek back and
// patch the RIFF header on close.
type memWriteSeeker struct {
	data []byte
	pos  int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.data) {
		grown := make([]byte, need)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = m.pos + int(offset)
	case io.SeekEnd:
		next = len(m.data) + int(offset)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position")
	}
	m.pos = next
	return int64(next), nil
}
