package sequencer

// SynchronousControl is the narrow back-channel a Source uses to push
// tempo changes to the engine (§6, §9). It is handed to the Source once,
// at SetSource time, rather than a reference to the Engine itself — a
// capability-passing pattern that avoids a Source ↔ Engine cyclic
// reference. SetBpm is only ever called synchronously from within the
// Source's own PlayToTick or Sync, on the engine thread.
type SynchronousControl interface {
	SetBpm(bpm float64)
}

// Source is a composite over an ordered list of Tracks (§4.4, §6). The
// engine treats it as the sole mutation window: the track list named by
// Tracks() may only be mutated from inside a call to Sync.
type Source interface {
	// Resolution returns ticks-per-quarter-note. Immutable for the
	// lifetime of a binding.
	Resolution() int

	// Tracks returns a read-only view of the Source's tracks, in the
	// engine's eyes. Only meaningful to call from within Sync, or for
	// introspection (e.g. the optional stopOnEmpty mode).
	Tracks() []Track

	// Name identifies the source, e.g. for logging.
	Name() string

	// Control hands the Source its SynchronousControl back-channel. Called
	// once, from SetSource.
	Control(control SynchronousControl)

	// Sync is called once per engine iteration that advances the tick. It
	// returns a signed tick delta to apply to the engine's tick position
	// (0 means no reposition). This is the Source's sole mutation window.
	Sync(currentTick int64) int64

	// PlayToTick drains every track whose NextTick is <= targetTick,
	// calling PlayNext on each. No ordering requirement across tracks.
	PlayToTick(targetTick int64)

	// ReturnToZero rewinds all cursors and any internal tempo-map state.
	ReturnToZero()

	// Stopped propagates a stop to all tracks (Track.Off(true)).
	Stopped()
}

// resettableTrack is implemented by concrete Track backings that need to
// rewind their cursor on Source.ReturnToZero. It is not part of the Track
// contract the engine relies on — only BasicSource's ReturnToZero uses it.
type resettableTrack interface {
	Reset()
}

// BasicSource is a reusable composite-of-tracks helper implementing the
// track-draining and stop/reset mechanics common to any Source backing.
// Concrete backings (e.g. pkg/midisource's SMF-backed source) embed it and
// supply their own Sync/Control for tempo-map and reposition handling —
// BasicSource's own Sync is a no-op and its Control discards the
// SynchronousControl, both meant to be shadowed by the embedder.
type BasicSource struct {
	name       string
	resolution int
	tracks     []Track
}

// NewBasicSource builds a BasicSource over tracks, which must already be
// ordered the way the backing wants PlayToTick to enumerate them.
func NewBasicSource(name string, resolution int, tracks []Track) *BasicSource {
	return &BasicSource{name: name, resolution: resolution, tracks: tracks}
}

func (s *BasicSource) Resolution() int { return s.resolution }

func (s *BasicSource) Name() string { return s.name }

// Tracks returns a copy of the track slice so callers outside Sync cannot
// mutate the Source's own list.
func (s *BasicSource) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// SetTracks replaces the track list. Backings must only call this from
// within their own Sync implementation (the sole mutation window, §4.4).
func (s *BasicSource) SetTracks(tracks []Track) {
	s.tracks = tracks
}

func (s *BasicSource) PlayToTick(targetTick int64) {
	for _, t := range s.tracks {
		for t.NextTick() <= targetTick {
			t.PlayNext()
		}
	}
}

func (s *BasicSource) ReturnToZero() {
	for _, t := range s.tracks {
		if r, ok := t.(resettableTrack); ok {
			r.Reset()
		}
	}
}

func (s *BasicSource) Stopped() {
	for _, t := range s.tracks {
		t.Off(true)
	}
}

// Sync is a no-op default; embedders with reposition/tempo-map logic
// should shadow it.
func (s *BasicSource) Sync(currentTick int64) int64 { return 0 }

// Control discards the back-channel by default; embedders that raise
// tempo changes from PlayNext should shadow it and retain control.
func (s *BasicSource) Control(control SynchronousControl) {}
