package sequencer

import "errors"

// Sentinel errors for the illegal-state / illegal-argument failure kinds.
// Callers that need additional context wrap these with fmt.Errorf("...: %w", ...).
var (
	// ErrNoSource is returned by Play when no Source has been bound via SetSource.
	ErrNoSource = errors.New("sequencer: no source bound")

	// ErrEngineRunning is returned by SetSource, SetClocksPerQuarter and
	// ReturnToZero when called while the engine thread is running.
	ErrEngineRunning = errors.New("sequencer: operation not permitted while running")

	// ErrClockMultiplierInvalid is returned by SetClocksPerQuarter when the
	// requested clocksPerQuarter does not evenly divide the source's
	// resolution, or exceeds it.
	ErrClockMultiplierInvalid = errors.New("sequencer: clocksPerQuarter must evenly divide resolution")

	// ErrDropFrameUnsupported is returned by NewMTCGenerator for the 29.97
	// drop-frame rate, which this core does not implement.
	ErrDropFrameUnsupported = errors.New("sequencer: drop-frame MTC rate is not supported")

	// ErrUnknownFrameRate is returned by NewMTCGenerator for any rate outside
	// {24, 25, 30}.
	ErrUnknownFrameRate = errors.New("sequencer: unsupported MTC frame rate")
)
