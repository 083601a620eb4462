package synth

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// Player owns the ebiten audio player pulling PCM from a Stream. Muted
// players still pull from the stream (so the synthesizer keeps advancing
// in lockstep with the sequencer engine) but emit silence, the same
// headless mode the teacher's player supports for test and batch runs.
type Player struct {
	stream *Stream
	player *audio.Player
}

// NewPlayer creates an ebiten audio context at sampleRate and starts
// playing stream through it. When muted is true the player's volume is
// set to zero rather than skipping playback entirely.
func NewPlayer(stream *Stream, sampleRate int, muted bool) (*Player, error) {
	ctx := audio.NewContext(sampleRate)
	player, err := ctx.NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("synth: create audio player: %w", err)
	}
	if muted {
		player.SetVolume(0)
	}
	player.Play()
	return &Player{stream: stream, player: player}, nil
}

// Close stops playback and the underlying stream.
func (p *Player) Close() error {
	p.player.Pause()
	p.stream.Stop()
	return nil
}
