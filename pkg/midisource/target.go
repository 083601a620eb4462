package midisource

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/zurustar/miditime/pkg/sequencer"
)

// Writer is the narrow gomidi sink this package forwards to: a real output
// port, a synth bridge, or anything else implementing gomidi's Writer
// contract (the same shape as the teacher's own MIDIBridge.Write).
type Writer interface {
	Write(msg midi.Message) error
}

// GomidiTarget adapts a gomidi Writer into a sequencer.Target (C9): each
// outbound sequencer.Message is reinterpreted as a gomidi Message (both are
// raw wire-format bytes) and written through.
type GomidiTarget struct {
	writer Writer
}

// NewGomidiTarget wraps writer as a sequencer.Target.
func NewGomidiTarget(writer Writer) *GomidiTarget {
	return &GomidiTarget{writer: writer}
}

func (g *GomidiTarget) Transport(message sequencer.Message, _ int64) error {
	return g.writer.Write(midi.Message(message))
}

var _ sequencer.Target = (*GomidiTarget)(nil)
