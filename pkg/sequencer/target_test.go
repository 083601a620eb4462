package sequencer

import (
	"errors"
	"testing"
)

type recordingTarget struct {
	messages []Message
	rejectN  int // reject the first rejectN messages
	sent     int
}

func (r *recordingTarget) Transport(message Message, timestamp int64) error {
	r.sent++
	if r.sent <= r.rejectN {
		return errors.New("downstream rejected")
	}
	r.messages = append(r.messages, message)
	return nil
}

func TestMessageTargetTracksSoundingNotes(t *testing.T) {
	down := &recordingTarget{}
	target := NewMessageTarget(down)

	_ = target.Transport(noteOnMessage(0, 60, 100), 0)
	_ = target.Transport(noteOnMessage(0, 64, 100), 0)

	target.NotesOff(false)

	var noteOffs int
	for _, m := range down.messages {
		if m.IsNoteOff() {
			noteOffs++
		}
	}
	if noteOffs != 2 {
		t.Fatalf("expected 2 explicit note-offs, got %d (messages: %v)", noteOffs, down.messages)
	}
}

func TestMessageTargetNotesOffSendsControllersInOrder(t *testing.T) {
	down := &recordingTarget{}
	target := NewMessageTarget(down)
	_ = target.Transport(noteOnMessage(1, 72, 90), 0)

	target.NotesOff(true)

	var sawAllNotesOff, sawHoldPedal, sawAllControllersOff bool
	var allNotesOffIdx, holdPedalIdx, allControllersOffIdx int
	for i, m := range down.messages {
		if m.Status()&0xF0 == statusControlChangeBase {
			switch m.Data1() {
			case ControlAllNotesOff:
				sawAllNotesOff, allNotesOffIdx = true, i
			case ControlHoldPedal:
				sawHoldPedal, holdPedalIdx = true, i
			case ControlAllControllersOff:
				sawAllControllersOff, allControllersOffIdx = true, i
			}
		}
	}
	if !sawAllNotesOff || !sawHoldPedal || !sawAllControllersOff {
		t.Fatalf("expected all three controller messages, got %v", down.messages)
	}
	if !(allNotesOffIdx < holdPedalIdx && holdPedalIdx < allControllersOffIdx) {
		t.Fatalf("expected ALL_NOTES_OFF, then HOLD_PEDAL, then ALL_CONTROLLERS_OFF, got indices %d,%d,%d",
			allNotesOffIdx, holdPedalIdx, allControllersOffIdx)
	}
}

func TestMessageTargetNotesOffWithoutStopSkipsAllControllersOff(t *testing.T) {
	down := &recordingTarget{}
	target := NewMessageTarget(down)
	_ = target.Transport(noteOnMessage(0, 60, 90), 0)

	target.NotesOff(false)

	for _, m := range down.messages {
		if m.Status()&0xF0 == statusControlChangeBase && m.Data1() == ControlAllControllersOff {
			t.Fatal("ALL_CONTROLLERS_OFF must not be sent when stop is false")
		}
	}
}

func TestMessageTargetSwallowsDownstreamErrors(t *testing.T) {
	down := &recordingTarget{rejectN: 1}
	target := NewMessageTarget(down)

	err := target.Transport(noteOnMessage(0, 60, 100), 0)
	if err != nil {
		t.Fatalf("MessageTarget must never propagate downstream errors, got %v", err)
	}
	if target.InvalidMessageCount() != 1 {
		t.Fatalf("expected invalid count 1, got %d", target.InvalidMessageCount())
	}
}
