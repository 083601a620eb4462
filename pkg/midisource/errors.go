package midisource

import "errors"

// Sentinel errors for this package's illegal-argument / invalid-data
// failure kinds, matching the sequencer package's own error taxonomy.
var (
	// ErrInvalidSMF is returned when the supplied bytes do not parse as a
	// standard MIDI file.
	ErrInvalidSMF = errors.New("midisource: invalid standard MIDI file")

	// ErrNoTracks is returned by LoadSMF when the file contains no tracks
	// at all.
	ErrNoTracks = errors.New("midisource: SMF contains no tracks")
)
