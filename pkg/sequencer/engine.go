package sequencer

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBPM is the bpm a newly-bound source starts at (§3).
const DefaultBPM = 120.0

// clockImpl is the narrow contract the real-time loop drives. Master and
// Slave are the only two variants (§4.5, §9 "tagged variant"); a clockImpl
// is constructed fresh at Play and dropped at Stop.
type clockImpl interface {
	interval(deltaMicros int64)
}

// Engine is the timing engine (C6): it owns the real-time loop, translates
// elapsed microseconds into tick advances via the active clock, and drives
// Source.Sync/PlayToTick. It is safe for concurrent use by a control
// thread, the engine's own real-time thread, and (in slave mode) a clock
// producer thread.
type Engine struct {
	observers

	// Guards configuration that may only change while stopped: source,
	// ticksPerQuarter, clocksPerQuarter, mtc, stopOnEmpty.
	cfgMu            sync.Mutex
	source           Source
	ticksPerQuarter  int
	clocksPerQuarter int
	mtc              *MTCGenerator
	stopOnEmpty      bool

	running    atomic.Bool
	stopSignal chan struct{}
	doneSignal chan struct{}

	tickPos    atomic.Int64
	bpmBits    atomic.Uint64
	factorBits atomic.Uint64

	// republished by Sync for the slave clock's jam-base tracking.
	lastSyncedTick atomic.Int64

	// activeSlave is non-nil only while running in slave mode; the external
	// clock-pulse producer thread reaches it through ClockPulse.
	activeSlave atomic.Pointer[slaveClock]
}

// NewEngine constructs a stopped Engine with no bound Source.
func NewEngine() *Engine {
	e := &Engine{}
	e.bpmBits.Store(math.Float64bits(DefaultBPM))
	e.factorBits.Store(math.Float64bits(1.0))
	return e
}

// BPM returns the current tempo.
func (e *Engine) BPM() float64 {
	return math.Float64frombits(e.bpmBits.Load())
}

// SetBpm sets the tempo immediately; a new piecewise-constant tempo
// segment begins at the next clock interval. Valid at any time; primarily
// intended for the Source's SynchronousControl back-channel, but writable
// from any thread.
func (e *Engine) SetBpm(bpm float64) {
	e.bpmBits.Store(math.Float64bits(bpm))
}

// TempoFactor returns the master-clock playback-rate multiplier.
func (e *Engine) TempoFactor() float64 {
	return math.Float64frombits(e.factorBits.Load())
}

// SetTempoFactor sets the master-clock playback-rate multiplier. Ignored
// when clocked externally (slave mode).
func (e *Engine) SetTempoFactor(f float64) {
	e.factorBits.Store(math.Float64bits(f))
}

// TickPosition returns the current tick position. Safe to call from any
// thread; written only by the engine thread.
func (e *Engine) TickPosition() int64 {
	return e.tickPos.Load()
}

// IsRunning reports whether the engine thread is alive.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// SetSource binds source, forbidden while running. Resets bpm to 120,
// tick position and delta-ticks accumulator to 0, rewinds the source and
// flushes outstanding notes.
func (e *Engine) SetSource(source Source) error {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	if e.running.Load() {
		return ErrEngineRunning
	}

	e.source = source
	e.ticksPerQuarter = source.Resolution()
	e.bpmBits.Store(math.Float64bits(DefaultBPM))
	e.tickPos.Store(0)
	e.lastSyncedTick.Store(0)

	source.Control(&syncControl{eng: e})
	source.ReturnToZero()
	source.Stopped()
	if e.mtc != nil {
		e.mtc.ReturnToZero()
	}
	return nil
}

// ReturnToZero rewinds the bound source's cursors and tempo-map state, and
// (when MTC is enabled) emits a full MTC frame at 00:00:00:00. Forbidden
// while running.
func (e *Engine) ReturnToZero() error {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	if e.running.Load() {
		return ErrEngineRunning
	}
	if e.source == nil {
		return ErrNoSource
	}

	e.tickPos.Store(0)
	e.lastSyncedTick.Store(0)
	e.source.ReturnToZero()
	if e.mtc != nil {
		e.mtc.ReturnToZero()
	}
	return nil
}

// SetClocksPerQuarter selects master (0) or slave (>0) mode. Forbidden
// while running. If a source is already bound, clocksPerQuarter must
// evenly divide the source's resolution.
func (e *Engine) SetClocksPerQuarter(clocksPerQuarter int) error {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	if e.running.Load() {
		return ErrEngineRunning
	}
	if clocksPerQuarter < 0 {
		return fmt.Errorf("%w: negative clocksPerQuarter", ErrClockMultiplierInvalid)
	}
	if clocksPerQuarter > 0 && e.source != nil {
		res := e.ticksPerQuarter
		if res < clocksPerQuarter || res%clocksPerQuarter != 0 {
			return ErrClockMultiplierInvalid
		}
	}
	e.clocksPerQuarter = clocksPerQuarter
	return nil
}

// SetMTCGenerator enables (non-nil) or disables (nil) the MTC quarter-frame
// layer. Forbidden while running, matching the other configuration setters.
func (e *Engine) SetMTCGenerator(mtc *MTCGenerator) error {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	if e.running.Load() {
		return ErrEngineRunning
	}
	e.mtc = mtc
	return nil
}

// SetStopOnEmpty enables or disables the optional auto-stop mode described
// in spec §9: the engine transitions to stopped once a full pump observes
// every track exhausted (NextTick() == MaxTickSentinel).
func (e *Engine) SetStopOnEmpty(enabled bool) error {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	if e.running.Load() {
		return ErrEngineRunning
	}
	e.stopOnEmpty = enabled
	return nil
}

// Play starts the real-time thread. Idempotent: a second call while
// already running is a no-op. Fails with ErrNoSource if no source is
// bound.
func (e *Engine) Play() error {
	e.cfgMu.Lock()
	if e.source == nil {
		e.cfgMu.Unlock()
		return ErrNoSource
	}
	if e.running.Load() {
		e.cfgMu.Unlock()
		return nil
	}

	var clk clockImpl
	if e.clocksPerQuarter > 0 {
		slave := newSlaveClock(e, e.clocksPerQuarter)
		e.activeSlave.Store(slave)
		clk = slave
	} else {
		e.activeSlave.Store(nil)
		clk = newMasterClock(e)
	}
	e.running.Store(true)
	e.stopSignal = make(chan struct{})
	e.doneSignal = make(chan struct{})
	e.cfgMu.Unlock()

	go e.loop(clk)

	e.notifyAll(StateRunning)
	return nil
}

// ClockPulse feeds an external MIDI clock pulse to the engine (§4.5, §9).
// Only meaningful while running with clocksPerQuarter > 0 (slave mode); a
// no-op otherwise. Safe to call from a dedicated clock-producer thread.
func (e *Engine) ClockPulse() {
	if slave := e.activeSlave.Load(); slave != nil {
		slave.Clock(currentTimeMicros())
	}
}

// Stop signals the real-time thread to exit and blocks until its shutdown
// protocol (Source.Stopped, note flush, observer notification) has
// completed. Idempotent: stopping an already-stopped engine is a no-op.
func (e *Engine) Stop() {
	e.cfgMu.Lock()
	if !e.running.Load() {
		e.cfgMu.Unlock()
		return
	}
	done := e.doneSignal
	close(e.stopSignal)
	e.cfgMu.Unlock()

	<-done
}

// syncOnce performs the Sync→PlayToTick step (§4.6 internal sync()).
func (e *Engine) syncOnce() {
	offset := e.source.Sync(e.tickPos.Load())
	if offset != 0 {
		e.tickPos.Add(offset)
		e.lastSyncedTick.Store(e.tickPos.Load())
	}
	e.source.PlayToTick(e.tickPos.Load())
}

// addTicks advances the tick position by n (n may be negative, though the
// clock variants in this package only ever add non-negative amounts) and
// runs the sync/play step. Called only from the engine thread.
func (e *Engine) addTicks(n int64) {
	e.tickPos.Add(n)
	e.syncOnce()
}

// setTickPosition snaps the tick position directly (used by the slave
// clock's jam-sync) and runs the sync/play step.
func (e *Engine) setTickPosition(tick int64) {
	e.tickPos.Store(tick)
	e.syncOnce()
}

func currentTimeMicros() int64 {
	return time.Now().UnixMicro()
}

// loop is the real-time thread body (§4.6). When MTC is enabled, each
// millisecond elapsed since the loop started also advances the quarter-frame
// generator (§4.7).
func (e *Engine) loop(clk clockImpl) {
	start := currentTimeMicros()
	prev := start
	e.syncOnce()

	e.cfgMu.Lock()
	mtc := e.mtc
	e.cfgMu.Unlock()

runLoop:
	for {
		select {
		case <-e.stopSignal:
			break runLoop
		default:
		}

		time.Sleep(time.Millisecond)

		now := currentTimeMicros()
		clk.interval(now - prev)
		prev = now

		if mtc != nil {
			mtc.Advance((now - start) / 1000)
		}

		if e.stopOnEmptyDue() {
			break runLoop
		}
	}

	e.cfgMu.Lock()
	src := e.source
	e.cfgMu.Unlock()

	if src != nil {
		src.Stopped()
	}
	e.activeSlave.Store(nil)
	e.running.Store(false)
	e.notifyAll(StateStopped)
	close(e.doneSignal)
}

// stopOnEmptyDue reports whether the optional stopOnEmpty mode (§9) should
// terminate the run: enabled, and every track reports MaxTickSentinel.
func (e *Engine) stopOnEmptyDue() bool {
	e.cfgMu.Lock()
	enabled := e.stopOnEmpty
	src := e.source
	e.cfgMu.Unlock()

	if !enabled || src == nil {
		return false
	}
	for _, t := range src.Tracks() {
		if t.NextTick() != MaxTickSentinel {
			return false
		}
	}
	return true
}

// syncControl is the capability object handed to a Source's Control
// method (§9): it exposes only SetBpm, never a reference to the Engine
// itself, breaking the Source ↔ Engine cyclic reference that an inner
// closure over the engine would otherwise create.
type syncControl struct {
	eng *Engine
}

func (c *syncControl) SetBpm(bpm float64) {
	c.eng.SetBpm(bpm)
}

var _ SynchronousControl = (*syncControl)(nil)
