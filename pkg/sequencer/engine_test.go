package sequencer

import (
	"testing"
	"time"
)

// fakeSource embeds BasicSource and shadows Sync/Control so tests can
// observe/drive the engine's sole mutation window.
type fakeSource struct {
	*BasicSource
	syncFn  func(tick int64) int64
	control SynchronousControl
}

func newFakeSource(resolution int, tracks ...Track) *fakeSource {
	return &fakeSource{BasicSource: NewBasicSource("fake", resolution, tracks)}
}

func (s *fakeSource) Sync(tick int64) int64 {
	if s.syncFn != nil {
		return s.syncFn(tick)
	}
	return 0
}

func (s *fakeSource) Control(c SynchronousControl) {
	s.control = c
}

func TestEngineSetSourceForbiddenWhileRunning(t *testing.T) {
	e := NewEngine()
	if err := e.SetSource(newFakeSource(96)); err != nil {
		t.Fatalf("unexpected error binding source: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("unexpected error starting: %v", err)
	}
	defer e.Stop()

	if err := e.SetSource(newFakeSource(96)); err != ErrEngineRunning {
		t.Fatalf("expected ErrEngineRunning, got %v", err)
	}
}

func TestEnginePlayRequiresSource(t *testing.T) {
	e := NewEngine()
	if err := e.Play(); err != ErrNoSource {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}

func TestEnginePlayStopIdempotent(t *testing.T) {
	e := NewEngine()
	_ = e.SetSource(newFakeSource(96))

	if err := e.Play(); err != nil {
		t.Fatalf("first Play failed: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("second Play must be a no-op, got %v", err)
	}

	e.Stop()
	e.Stop() // idempotent, must not block or panic

	if e.IsRunning() {
		t.Fatal("expected engine stopped")
	}
}

func TestEngineTickPositionMonotonicWhileRunning(t *testing.T) {
	e := NewEngine()
	_ = e.SetSource(newFakeSource(96))
	e.SetBpm(600) // fast, so the test doesn't need to wait long

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer e.Stop()

	var last int64
	for i := 0; i < 20; i++ {
		time.Sleep(5 * time.Millisecond)
		cur := e.TickPosition()
		if cur < last {
			t.Fatalf("tick position went backwards: %d -> %d", last, cur)
		}
		last = cur
	}
	if last == 0 {
		t.Fatal("expected tick position to have advanced")
	}
}

func TestEngineSyncRepositionsTickPosition(t *testing.T) {
	e := NewEngine()
	src := newFakeSource(96)
	firstSync := true
	src.syncFn = func(tick int64) int64 {
		if firstSync {
			firstSync = false
			return 1000
		}
		return 0
	}
	_ = e.SetSource(src)
	e.SetBpm(120)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer e.Stop()

	time.Sleep(10 * time.Millisecond)

	if e.TickPosition() < 1000 {
		t.Fatalf("expected reposition to have applied, tick position = %d", e.TickPosition())
	}
}

func TestEngineSetClocksPerQuarterRejectsNonDivisor(t *testing.T) {
	e := NewEngine()
	_ = e.SetSource(newFakeSource(96))

	if err := e.SetClocksPerQuarter(7); err != ErrClockMultiplierInvalid {
		t.Fatalf("expected ErrClockMultiplierInvalid, got %v", err)
	}
	if err := e.SetClocksPerQuarter(24); err != nil {
		t.Fatalf("24 evenly divides 96, expected success, got %v", err)
	}
}

func TestEngineReturnToZeroForbiddenWhileRunning(t *testing.T) {
	e := NewEngine()
	_ = e.SetSource(newFakeSource(96))
	_ = e.Play()
	defer e.Stop()

	if err := e.ReturnToZero(); err != ErrEngineRunning {
		t.Fatalf("expected ErrEngineRunning, got %v", err)
	}
}

// TestEngineSlaveModeInterpolatesBetweenRealClockPulses runs the engine
// end-to-end in slave mode (Play -> ClockPulse, real time in between), the
// path scenario D (spec.md §8) describes: tickPosition must advance in
// clockMultiplier-sized jumps at each pulse, with intermediate values
// observable in between rather than sitting flat until the next pulse.
func TestEngineSlaveModeInterpolatesBetweenRealClockPulses(t *testing.T) {
	e := NewEngine()
	_ = e.SetSource(newFakeSource(96))
	if err := e.SetClocksPerQuarter(24); err != nil { // multiplier 4
		t.Fatalf("SetClocksPerQuarter failed: %v", err)
	}
	e.SetBpm(120)

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer e.Stop()

	e.ClockPulse()
	time.Sleep(5 * time.Millisecond)
	if got := e.TickPosition(); got != 4 {
		t.Fatalf("expected first pulse to snap tickPosition to 4, got %d", got)
	}

	var sawIntermediate bool
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
		if pos := e.TickPosition(); pos > 4 && pos < 8 {
			sawIntermediate = true
			break
		}
	}
	if !sawIntermediate {
		t.Fatal("expected tickPosition to pass through an intermediate, interpolated value between pulses")
	}

	e.ClockPulse()
	time.Sleep(5 * time.Millisecond)
	if got := e.TickPosition(); got != 8 {
		t.Fatalf("expected second pulse to snap tickPosition to 8 regardless of interpolation progress, got %d", got)
	}
}

func TestEngineStopFlushesNotes(t *testing.T) {
	e := NewEngine()
	tr := newFakeTrack("a")
	src := newFakeSource(96, tr)
	_ = e.SetSource(src)
	beforePlay := len(tr.offCalls) // SetSource already flushes once
	_ = e.Play()

	e.Stop()

	if len(tr.offCalls) <= beforePlay {
		t.Fatal("expected track Off called on stop")
	}
}
