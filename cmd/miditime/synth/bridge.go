// Package synth bridges the sequencer engine's output to an audible signal:
// a Bridge receives MIDI messages and feeds them into an in-process
// software synthesizer, and a Stream renders the synthesizer's output as a
// PCM byte stream an audio player can consume.
package synth

import (
	"fmt"
	"io"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/miditime/pkg/sequencer"
)

// Bridge adapts a sequencer.Target onto a meltysynth.Synthesizer: every
// Transport call is decomposed into its channel/command/data bytes and fed
// straight into ProcessMidiMessage. Rendering happens separately, on
// whatever cadence Stream.Read is pulled at.
type Bridge struct {
	mu          sync.Mutex
	synthesizer *meltysynth.Synthesizer
}

// NewBridge builds a synthesizer from the already-parsed soundFont,
// rendering at sampleRate, ready to receive MIDI messages through Transport.
func NewBridge(soundFont *meltysynth.SoundFont, sampleRate int) (*Bridge, error) {
	settings := meltysynth.NewSynthesizerSettings(sampleRate)
	synthesizer, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("synth: create synthesizer: %w", err)
	}
	return &Bridge{synthesizer: synthesizer}, nil
}

// Transport implements sequencer.Target: message is decomposed into its
// channel-voice components and handed to the synthesizer immediately.
// Non channel-voice messages (SysEx, meta) are silently ignored, the same
// way the teacher's bridge drops anything its synth can't consume.
func (b *Bridge) Transport(message sequencer.Message, _ int64) error {
	if len(message) == 0 {
		return nil
	}
	channel, command, data1, data2 := splitChannelVoice(message)
	if command == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.synthesizer.ProcessMidiMessage(int32(channel), int32(command), int32(data1), int32(data2))
	return nil
}

func splitChannelVoice(m sequencer.Message) (channel, command, data1, data2 int) {
	status := m[0]
	if status < 0x80 || status >= 0xF0 {
		return 0, 0, 0, 0
	}
	channel = int(status & 0x0F)
	command = int(status & 0xF0)
	if len(m) > 1 {
		data1 = int(m[1])
	}
	if len(m) > 2 {
		data2 = int(m[2])
	}
	return channel, command, data1, data2
}

// render renders one stereo block from the synthesizer under lock, so
// Transport and Read can be called from different goroutines (the engine's
// real-time loop and the audio player's pull thread).
func (b *Bridge) render(left, right []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.synthesizer.Render(left, right)
}

var _ sequencer.Target = (*Bridge)(nil)
var _ io.Closer = (*Bridge)(nil)

// Close is a no-op; Bridge holds no OS resources of its own. It exists so
// callers can treat Bridge uniformly with other closable sinks.
func (b *Bridge) Close() error { return nil }
