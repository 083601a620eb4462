package sequencer

import (
	"sync"
	"sync/atomic"

	"github.com/zurustar/miditime/pkg/logger"
)

// Target is the narrow downstream MIDI sink interface (§6). Timestamp 0
// means "immediate". Implementations that reject a message (malformed
// wire bytes) return an error; MessageTarget treats that as the
// invalid-midi-data failure kind (§7) and never lets it reach the
// real-time thread.
type Target interface {
	Transport(message Message, timestamp int64) error
}

// MessageTarget decorates a downstream Target, maintaining a NoteOnCache
// of currently-sounding notes so that stop()/mute can emit balancing
// note-offs. It is itself a Target: the engine and Tracks write through it,
// never directly to the wrapped sink.
type MessageTarget struct {
	downstream Target
	cache      *NoteOnCache
	mu         sync.Mutex

	invalidCount atomic.Int64
	logOnce      sync.Once
	log          logSink
}

type logSink interface {
	Error(msg string, args ...any)
}

// NewMessageTarget wraps downstream, maintaining note-on state for it.
func NewMessageTarget(downstream Target) *MessageTarget {
	return &MessageTarget{
		downstream: downstream,
		cache:      NewNoteOnCache(),
		log:        logger.Component("target"),
	}
}

// Transport inspects message for note-on/off status to maintain the
// NoteOnCache, then forwards it unchanged to the downstream sink. A
// rejection from downstream is counted and logged once, never propagated.
func (t *MessageTarget) Transport(message Message, timestamp int64) error {
	t.mu.Lock()
	if message.IsNoteOn() && message.Data2() > 0 {
		t.cache.Set(int(message.Data1()), int(message.Channel()))
	} else if message.IsNoteOff() {
		t.cache.Clear(int(message.Data1()), int(message.Channel()))
	}
	t.mu.Unlock()

	if err := t.downstream.Transport(message, timestamp); err != nil {
		t.invalidCount.Add(1)
		t.logOnce.Do(func() {
			t.log.Error("downstream rejected MIDI message", "status", message.Status(), "error", err)
		})
		return nil
	}
	return nil
}

// InvalidMessageCount returns how many messages the downstream sink has
// rejected over the lifetime of this target.
func (t *MessageTarget) InvalidMessageCount() int64 {
	return t.invalidCount.Load()
}

// NotesOff silences every currently-sounding note across all 16 channels:
// explicit note-offs are sent first (for devices that ignore the blanket
// all-notes-off CC), then ALL_NOTES_OFF, then a hold-pedal release. When
// stop is true, ALL_CONTROLLERS_OFF is sent as well.
func (t *MessageTarget) NotesOff(stop bool) {
	for channel := 0; channel < 16; channel++ {
		t.mu.Lock()
		notes := t.cache.SoundingOn(channel)
		for _, note := range notes {
			t.cache.Clear(note, channel)
		}
		t.mu.Unlock()

		for _, note := range notes {
			_ = t.Transport(noteOnMessage(channel, note, 0), 0)
		}
		_ = t.downstream.Transport(controlChangeMessage(channel, ControlAllNotesOff, 0), 0)
		_ = t.downstream.Transport(controlChangeMessage(channel, ControlHoldPedal, 0), 0)
		if stop {
			_ = t.downstream.Transport(controlChangeMessage(channel, ControlAllControllersOff, 0), 0)
		}
	}
}
