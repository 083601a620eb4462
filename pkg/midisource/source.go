package midisource

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/zurustar/miditime/pkg/sequencer"
)

// TempoEvent records a tempo change at an absolute tick, extracted once at
// load time purely for Duration (§9 "supplemented feature"); playback
// itself re-derives tempo changes live from each track's own tempo
// meta-events as they are played (§4.7's "per-pump" model).
type TempoEvent struct {
	Tick          int64
	MicrosPerBeat int64
}

// SMFSource is the concrete Source backing (C8): it parses a standard MIDI
// file once at load time into one sequencer.Track per SMF track, sharing a
// single downstream sequencer.MessageTarget across all of them.
type SMFSource struct {
	*sequencer.BasicSource

	tracksImpl []*track
	tempoMap   []TempoEvent
	totalTicks int64
}

const defaultMicrosPerBeat = 500_000 // 120 bpm

// LoadSMF parses r as a standard MIDI file and builds an SMFSource whose
// tracks write through target. target is shared across all tracks so that
// MessageTarget.NotesOff silences notes regardless of which track raised
// them.
func LoadSMF(r io.Reader, target *sequencer.MessageTarget) (*SMFSource, error) {
	data, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSMF, err)
	}
	if len(data.Tracks) == 0 {
		return nil, ErrNoTracks
	}

	ppq := 480
	if mt, ok := data.TimeFormat.(smf.MetricTicks); ok {
		ppq = int(mt)
	}

	tempoMap := []TempoEvent{{Tick: 0, MicrosPerBeat: defaultMicrosPerBeat}}
	var totalTicks int64

	tracksImpl := make([]*track, 0, len(data.Tracks))
	tracks := make([]sequencer.Track, 0, len(data.Tracks))

	for i, smfTrack := range data.Tracks {
		name := fmt.Sprintf("track-%d", i)
		var events []trackEvent
		var absTick int64

		for _, ev := range smfTrack {
			absTick += int64(ev.Delta)
			msg := ev.Message

			var bpm float64
			if msg.GetMetaTempo(&bpm) && bpm > 0 {
				micros := int64(60_000_000.0 / bpm)
				events = append(events, trackEvent{tick: absTick, isTempo: true, microsPerBeat: micros})
				tempoMap = append(tempoMap, TempoEvent{Tick: absTick, MicrosPerBeat: micros})
				continue
			}

			var rawName string
			if msg.GetMetaTrackName(&rawName) {
				name = decodeTrackName(rawName)
				continue
			}

			if msg.IsMeta() || !msg.IsPlayable() {
				continue
			}
			events = append(events, trackEvent{tick: absTick, message: sequencer.Message(msg.Bytes())})
		}

		if absTick > totalTicks {
			totalTicks = absTick
		}

		ti := &track{name: name, events: events, target: target}
		tracksImpl = append(tracksImpl, ti)
		tracks = append(tracks, ti)
	}

	return &SMFSource{
		BasicSource: sequencer.NewBasicSource("smf", ppq, tracks),
		tracksImpl:  tracksImpl,
		tempoMap:    tempoMap,
		totalTicks:  totalTicks,
	}, nil
}

// Control hands the engine's SynchronousControl down to every track, which
// consume it when playing an in-band tempo meta-event.
func (s *SMFSource) Control(control sequencer.SynchronousControl) {
	for _, t := range s.tracksImpl {
		t.control = control
	}
}

// Duration computes the wall-clock length of the file by walking the
// tempo map built at load time, the same piecewise-segment calculation the
// teacher's MIDI player logs at playback start.
func (s *SMFSource) Duration() time.Duration {
	var seconds float64
	lastTick := int64(0)
	lastMicros := int64(defaultMicrosPerBeat)

	for i, te := range s.tempoMap {
		if i > 0 {
			seconds += segmentSeconds(te.Tick-lastTick, s.Resolution(), lastMicros)
		}
		lastTick, lastMicros = te.Tick, te.MicrosPerBeat
	}
	if s.totalTicks > lastTick {
		seconds += segmentSeconds(s.totalTicks-lastTick, s.Resolution(), lastMicros)
	}
	return time.Duration(seconds * float64(time.Second))
}

func segmentSeconds(ticks int64, resolution int, microsPerBeat int64) float64 {
	return float64(ticks) / float64(resolution) * float64(microsPerBeat) / 1_000_000.0
}

// decodeTrackName returns name unchanged if it is already valid UTF-8,
// otherwise falls back to decoding it as Shift_JIS (common in MIDI files
// authored by Japanese sequencer software).
func decodeTrackName(name string) string {
	if utf8.ValidString(name) {
		return name
	}
	decoded, err := io.ReadAll(transform.NewReader(strings.NewReader(name), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return name
	}
	return string(decoded)
}
