package sequencer

import (
	"math"
	"sync/atomic"
)

// microsPerQuarterAtOneBPM: 60_000_000 microseconds per minute, one
// quarter-note per beat at 1 bpm.
const microsPerQuarterAtOneBPM = 60_000_000.0

// masterClock is the free-running clock variant (§4.5): it turns elapsed
// wall-clock time directly into tick advances, using the engine's own bpm
// and tempo factor. Constructed fresh at Play, dropped at Stop — its
// deltaTicks accumulator therefore always starts at zero.
type masterClock struct {
	eng        *Engine
	deltaTicks float64
}

func newMasterClock(eng *Engine) *masterClock {
	return &masterClock{eng: eng}
}

// interval advances deltaTicks by the tick-rate law and, once at least one
// whole tick has accumulated, applies the floored amount to the engine and
// retains the fractional remainder.
func (c *masterClock) interval(deltaMicros int64) {
	bpm := c.eng.BPM()
	factor := c.eng.TempoFactor()
	ticksPerQuarter := float64(c.eng.ticksPerQuarter)

	c.deltaTicks += float64(deltaMicros) / microsPerQuarterAtOneBPM * bpm * ticksPerQuarter * factor

	if c.deltaTicks >= 1 {
		whole := math.Floor(c.deltaTicks)
		c.deltaTicks -= whole
		c.eng.addTicks(int64(whole))
	}
}

// slaveClock is the externally-clocked variant (§4.5, §9): an external
// producer thread delivers clock pulses via Clock, which are handed to the
// engine thread by the real-time loop's interval call using a "writer sets,
// reader clears" single-slot handoff. No locks are taken on the pulse path.
//
// Every pulse is a jam: Clock computes jamTickPosition = lastTickPosition +
// clockMultiplier and arms it unconditionally (§4.5 item "clock()"; §8
// property 8). interval's first call after a pulse snaps tickPosition
// straight to that value, correcting any drift, then clears an
// interpolation budget of clockMultiplier-1 ticks that subsequent interval
// calls (the ones with no pulse waiting) drain gradually at the smoothed
// bpm, hiding the quantisation between pulses (§4.5 item "interval()").
type slaveClock struct {
	eng              *Engine
	clocksPerQuarter int
	clockMultiplier  int64

	// pending holds 1 when a pulse's jam target is waiting to be applied,
	// 0 once interval has consumed it, and -1 before the first pulse. Clock (the writer) stores it; interval (the reader,
	// on the engine thread) loads-then-clears it with CompareAndSwap so a
	// pulse arriving mid-read is never lost nor double-applied.
	pending atomic.Int64
	jamTick atomic.Int64

	// deltaTicks and ticksEmitted are interval's own interpolation state,
	// touched only on the engine thread: deltaTicks accumulates fractional
	// ticks via the rate law below; ticksEmitted counts whole ticks
	// already emitted since the last snap, capped at clockMultiplier-1.
	// Both reset to zero whenever a pulse's jam is applied.
	deltaTicks   float64
	ticksEmitted int64

	// producer-side state, touched only by Clock's caller thread.
	lastPulseMicros  int64
	havePulse        bool
	smoothedBPM      float64
	haveSmoothed     bool
	lastTickPosition int64
}

func newSlaveClock(eng *Engine, clocksPerQuarter int) *slaveClock {
	c := &slaveClock{eng: eng, clocksPerQuarter: clocksPerQuarter, clockMultiplier: 1}
	c.pending.Store(-1)
	ticksPerQuarter := eng.ticksPerQuarter
	if clocksPerQuarter > 0 {
		c.clockMultiplier = int64(ticksPerQuarter / clocksPerQuarter)
	}
	// No interpolation budget until the first pulse's jam has been applied.
	c.ticksEmitted = c.clockMultiplier - 1
	return c
}

// Clock is called by the external clock-pulse producer thread (§4.5, §9),
// once per incoming MIDI clock pulse. It sets jamTickPosition to
// lastTickPosition+clockMultiplier and arms the pending slot for the engine
// thread to snap to on its next interval, then computes an instantaneous
// bpm from the elapsed time since the previous pulse, smooths it with a
// first-order IIR filter (seeded from the engine's bpm), and publishes the
// smoothed bpm. Instantaneous values above 300 bpm are ignored as spikes.
func (c *slaveClock) Clock(nowMicros int64) {
	target := c.lastTickPosition + c.clockMultiplier
	c.lastTickPosition = target
	c.jamTick.Store(target)
	c.pending.Store(1)

	if c.havePulse {
		deltaMicros := nowMicros - c.lastPulseMicros
		if deltaMicros > 0 {
			deltaSec := float64(deltaMicros) / 1_000_000.0
			instantaneous := 60.0 / (deltaSec * float64(c.clocksPerQuarter))
			if !c.haveSmoothed {
				c.smoothedBPM = c.eng.BPM()
				c.haveSmoothed = true
			}
			if instantaneous <= 300 {
				const alpha = 0.25
				c.smoothedBPM = alpha*instantaneous + (1-alpha)*c.smoothedBPM
				c.eng.SetBpm(c.smoothedBPM)
			}
		}
	}
	c.lastPulseMicros = nowMicros
	c.havePulse = true
}

// interval runs on the engine thread (called from Engine.loop). If a pulse's
// jam is pending, it snaps tickPosition to jamTick and resets the
// interpolation budget; otherwise it advances deltaTicks by the rate law at
// the current (smoothed) bpm, tempoFactor ignored, and emits whole ticks up
// to whatever remains of the clockMultiplier-1 interpolation budget.
func (c *slaveClock) interval(deltaMicros int64) {
	if c.pending.CompareAndSwap(1, 0) {
		c.eng.setTickPosition(c.jamTick.Load())
		c.deltaTicks = 0
		c.ticksEmitted = 0
		return
	}

	remaining := c.clockMultiplier - 1 - c.ticksEmitted
	if remaining <= 0 {
		return
	}

	bpm := c.eng.BPM()
	ticksPerQuarter := float64(c.eng.ticksPerQuarter)
	c.deltaTicks += float64(deltaMicros) / microsPerQuarterAtOneBPM * bpm * ticksPerQuarter

	if c.deltaTicks < 1 {
		return
	}

	whole := int64(math.Floor(c.deltaTicks))
	if whole > remaining {
		whole = remaining
	}
	c.deltaTicks -= float64(whole)
	c.ticksEmitted += whole
	c.eng.addTicks(whole)
}
