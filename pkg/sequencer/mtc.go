package sequencer

import "math"

// mtcRate is the MTC frame-rate code carried in bits 5-6 of the hours byte
// (full frame) and the top bits of quarter-frame 7 (§4.7).
type mtcRate byte

const (
	mtcRate24        mtcRate = 0
	mtcRate25        mtcRate = 1
	mtcRate30NonDrop mtcRate = 2
)

// mtcTime is the cached hh:mm:ss:ff snapshot taken whenever qf wraps to 0.
type mtcTime struct {
	hours, minutes, seconds, frames int
}

// MTCGenerator is the deterministic per-millisecond MTC quarter-frame
// encoder (C7, §4.7). It is driven by the engine's real-time loop once per
// millisecond elapsed and writes quarter-frame (and, on ReturnToZero, full)
// messages to target.
type MTCGenerator struct {
	target Target

	fps   int
	rate  mtcRate
	mspf  float64
	mspqf float64
	qfpms float64

	requestedRate *mtcRate
	pendingFPS    int

	prevQf int
	cached mtcTime
}

// NewMTCGenerator builds a generator for fps, which must be one of 24, 25
// or 30. dropFrame requests the 29.97 drop-frame variant of the 30 fps
// rate, which this core does not implement and always rejects.
func NewMTCGenerator(fps int, dropFrame bool, target Target) (*MTCGenerator, error) {
	if dropFrame {
		return nil, ErrDropFrameUnsupported
	}
	rate, err := mtcRateFor(fps)
	if err != nil {
		return nil, err
	}
	g := &MTCGenerator{target: target, prevQf: -1}
	g.setRate(fps, rate)
	return g, nil
}

func mtcRateFor(fps int) (mtcRate, error) {
	switch fps {
	case 24:
		return mtcRate24, nil
	case 25:
		return mtcRate25, nil
	case 30:
		return mtcRate30NonDrop, nil
	default:
		return 0, ErrUnknownFrameRate
	}
}

func (g *MTCGenerator) setRate(fps int, rate mtcRate) {
	g.fps = fps
	g.rate = rate
	g.mspf = 1000.0 / float64(fps)
	g.mspqf = g.mspf / 4
	g.qfpms = 1 / g.mspqf
}

// SetFrameRate requests a rate change. Per §4.7 this is deferred: the
// effective rate only swaps in at the start of the next Advance call, kept
// synchronous with the real-time thread rather than applied mid-call.
func (g *MTCGenerator) SetFrameRate(fps int) error {
	rate, err := mtcRateFor(fps)
	if err != nil {
		return err
	}
	g.requestedRate = &rate
	g.pendingFPS = fps
	return nil
}

// Advance runs one millisecond tick of the quarter-frame state machine
// (§4.7). millis is the elapsed time since the engine started running.
func (g *MTCGenerator) Advance(millis int64) {
	if g.requestedRate != nil {
		g.setRate(g.pendingFPS, *g.requestedRate)
		g.requestedRate = nil
	}

	// 2000 ms holds a whole, even number of frames at 24, 25 and 30 fps, so
	// wrapping millis here never breaks the two-frame quarter-frame rotation.
	cycle := math.Mod(float64(millis), 2000)
	f := math.Mod(cycle/g.mspf, 2)
	qff := g.qfpms/2 + 4*f
	qf := int(math.Floor(qff)) % 8

	if qf != g.prevQf {
		if qf == 0 {
			g.cached = timeFromMillis(millis, g.mspf)
		}
		g.emitQuarterFrame(qf)
		g.prevQf = qf
	}
}

// ReturnToZero resets the rotation (forcing qf=0 to re-emit on the next
// Advance) and immediately sends a full MTC frame at 00:00:00:00.
func (g *MTCGenerator) ReturnToZero() {
	g.prevQf = -1
	g.cached = mtcTime{}
	_ = g.target.Transport(fullFrameMessage(mtcTime{}, g.rate), 0)
}

func timeFromMillis(millis int64, mspf float64) mtcTime {
	h := millis / 3_600_000
	rem := millis % 3_600_000
	m := rem / 60_000
	rem %= 60_000
	s := rem / 1_000
	rem %= 1_000
	f := int(math.Round(float64(rem) / mspf))
	return mtcTime{hours: int(h), minutes: int(m), seconds: int(s), frames: f}
}

// quarterFrameNibble returns the 4-bit payload quarter-frame index qf
// carries, per the standard MTC rotation (§4.7 GLOSSARY: "eight QFs span
// two video frames").
func quarterFrameNibble(qf int, t mtcTime, rate mtcRate) byte {
	switch qf {
	case 0:
		return byte(t.frames & 0x0F)
	case 1:
		return byte((t.frames >> 4) & 0x01)
	case 2:
		return byte(t.seconds & 0x0F)
	case 3:
		return byte((t.seconds >> 4) & 0x03)
	case 4:
		return byte(t.minutes & 0x0F)
	case 5:
		return byte((t.minutes >> 4) & 0x03)
	case 6:
		return byte(t.hours & 0x0F)
	case 7:
		return byte((t.hours>>4)&0x01) | byte(rate)<<1
	default:
		return 0
	}
}

func (g *MTCGenerator) emitQuarterFrame(qf int) {
	nibble := quarterFrameNibble(qf, g.cached, g.rate)
	message := Message{0xF1, byte(qf<<4) | nibble}
	_ = g.target.Transport(message, 0)
}

// fullFrameMessage builds the full MTC SysEx (§6 "MTC downstream"): F0 7F 7F
// 01 01 hh mm ss ff F7, with the rate carried in the top bits of hh.
func fullFrameMessage(t mtcTime, rate mtcRate) Message {
	hh := byte(t.hours&0x1F) | byte(rate)<<5
	return Message{0xF0, 0x7F, 0x7F, 0x01, 0x01, hh, byte(t.minutes), byte(t.seconds), byte(t.frames), 0xF7}
}
