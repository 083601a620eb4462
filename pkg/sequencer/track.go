package sequencer

import "math"

// MaxTickSentinel is returned by Track.NextTick when a track is exhausted.
const MaxTickSentinel int64 = math.MaxInt64

// Track is a per-voice lazy cursor over a tick-ordered sequence of events
// (§4.3, §6). Cursor position is owned exclusively by the Source that
// created the track; the engine only peeks via NextTick and advances via
// PlayNext.
//
// Implementations should anchor cursor position on a "previously played"
// reference rather than "next event due" so that events inserted between
// a NextTick peek and the following PlayNext (racing with a mutation
// inside Source.Sync) are still observed on a later pump instead of lost.
type Track interface {
	// NextTick peeks the tick of the next unplayed event, or
	// MaxTickSentinel if the track is exhausted. Must be cheap: called
	// on every pump.
	NextTick() int64

	// PlayNext advances the cursor by exactly one event and delivers it.
	// Tempo meta-events are filtered out here and surfaced as a
	// SynchronousControl.SetBpm call instead of reaching the downstream
	// Target.
	PlayNext()

	// Off silences this track's sounding notes. stop additionally resets
	// controllers (see MessageTarget.NotesOff).
	Off(stop bool)

	// Name returns a name unique within the owning Source.
	Name() string
}
