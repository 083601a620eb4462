package synth

import (
	"encoding/binary"
	"io"
	"sync"
)

const blockFrames = 256 // rendered samples per Render call, one stereo frame per sample

// Stream renders bridge's synthesizer as an io.Reader of interleaved
// 16-bit little-endian stereo PCM, the format ebiten/v2/audio expects.
// Rendering happens lazily, a block at a time, as Read is pulled.
type Stream struct {
	bridge *Bridge

	mu      sync.Mutex
	stopped bool
	left    []float32
	right   []float32
	scratch []byte
	offset  int
}

// NewStream wraps bridge for pull-based PCM rendering.
func NewStream(bridge *Bridge) *Stream {
	return &Stream{
		bridge: bridge,
		left:   make([]float32, blockFrames),
		right:  make([]float32, blockFrames),
	}
}

// Read fills p with rendered PCM bytes, rendering a fresh block from the
// synthesizer whenever the previous one is exhausted. Read never returns
// io.EOF on its own; playback ends when Stop is called.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) {
		if s.offset >= len(s.scratch) {
			s.bridge.render(s.left, s.right)
			s.scratch = interleave(s.left, s.right, s.scratch[:0])
			s.offset = 0
		}
		n := copy(p[total:], s.scratch[s.offset:])
		s.offset += n
		total += n
	}
	return total, nil
}

// Stop marks the stream exhausted; subsequent Read calls return io.EOF.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func interleave(left, right []float32, dst []byte) []byte {
	for i := range left {
		dst = binary.LittleEndian.AppendUint16(dst, floatToInt16(left[i]))
		dst = binary.LittleEndian.AppendUint16(dst, floatToInt16(right[i]))
	}
	return dst
}

func floatToInt16(v float32) uint16 {
	v = clamp(v, -1, 1)
	return uint16(int16(v * 32767))
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
