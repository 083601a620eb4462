package synth

import (
	"testing"

	"github.com/zurustar/miditime/pkg/sequencer"
)

func TestSplitChannelVoiceExtractsComponents(t *testing.T) {
	cases := []struct {
		name                           string
		message                        sequencer.Message
		channel, command, data1, data2 int
	}{
		{"note-on", sequencer.Message{0x91, 60, 100}, 1, 0x90, 60, 100},
		{"control-change", sequencer.Message{0xB5, 64, 0}, 5, 0xB0, 64, 0},
		{"program-change single data byte", sequencer.Message{0xC0, 12}, 0, 0xC0, 12, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			channel, command, data1, data2 := splitChannelVoice(tc.message)
			if channel != tc.channel || command != tc.command || data1 != tc.data1 || data2 != tc.data2 {
				t.Fatalf("splitChannelVoice(%v) = (%d,%d,%d,%d), want (%d,%d,%d,%d)",
					tc.message, channel, command, data1, data2, tc.channel, tc.command, tc.data1, tc.data2)
			}
		})
	}
}

func TestSplitChannelVoiceRejectsSystemMessages(t *testing.T) {
	channel, command, data1, data2 := splitChannelVoice(sequencer.Message{0xF1, 0x00})
	if command != 0 {
		t.Fatalf("expected system messages to report command 0, got channel=%d command=%d data1=%d data2=%d", channel, command, data1, data2)
	}
}

func TestBridgeTransportIgnoresEmptyMessage(t *testing.T) {
	bridge := &Bridge{}
	if err := bridge.Transport(nil, 0); err != nil {
		t.Fatalf("unexpected error for empty message: %v", err)
	}
}

func TestBridgeTransportIgnoresSystemMessage(t *testing.T) {
	bridge := &Bridge{}
	if err := bridge.Transport(sequencer.Message{0xF1, 0x00}, 0); err != nil {
		t.Fatalf("unexpected error for system message: %v", err)
	}
}
