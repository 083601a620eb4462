package midisource

import "github.com/zurustar/miditime/pkg/sequencer"

// trackEvent is either a playable MIDI message or a tempo meta-event, in
// absolute tick order.
type trackEvent struct {
	tick          int64
	isTempo       bool
	microsPerBeat int64
	message       sequencer.Message
}

// track is the SMF-backed sequencer.Track: a lazily-advanced cursor over a
// pre-sorted event list. Tempo meta-events are intercepted here and routed
// to control.SetBpm instead of the downstream target (sequencer.Track's
// contract, §4.3).
type track struct {
	name    string
	events  []trackEvent
	cursor  int
	target  *sequencer.MessageTarget
	control sequencer.SynchronousControl
}

func (t *track) NextTick() int64 {
	if t.cursor >= len(t.events) {
		return sequencer.MaxTickSentinel
	}
	return t.events[t.cursor].tick
}

func (t *track) PlayNext() {
	e := t.events[t.cursor]
	t.cursor++

	if e.isTempo {
		if t.control != nil {
			t.control.SetBpm(60_000_000.0 / float64(e.microsPerBeat))
		}
		return
	}
	_ = t.target.Transport(e.message, 0)
}

func (t *track) Off(stop bool) {
	t.target.NotesOff(stop)
}

func (t *track) Name() string { return t.name }

// Reset rewinds the cursor; called via sequencer.BasicSource.ReturnToZero's
// resettableTrack check.
func (t *track) Reset() { t.cursor = 0 }

var _ sequencer.Track = (*track)(nil)
