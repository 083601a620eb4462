// Command miditime plays a standard MIDI file through a software
// synthesizer, driven by the sequencer engine.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/zurustar/miditime/cmd/miditime/synth"
	"github.com/zurustar/miditime/pkg/logger"
	"github.com/zurustar/miditime/pkg/midisource"
	"github.com/zurustar/miditime/pkg/sequencer"
)

const sampleRate = 44100

func main() {
	midiPath := flag.String("midi", "", "path to the standard MIDI file to play")
	soundFontPath := flag.String("soundfont", "", "path to the SF2 soundfont")
	mtcFPS := flag.Int("mtc-fps", 0, "emit MTC quarter-frames at this frame rate (0 disables)")
	clocksPerQuarter := flag.Int("clocks-per-quarter", 0, "run as an external-clock slave at this pulses-per-quarter rate (0 runs as master)")
	tempoFactor := flag.Float64("tempo-factor", 1.0, "master-clock playback-rate multiplier")
	mute := flag.Bool("mute", false, "render silently: the audio player still runs, at volume zero")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if err := logger.InitLogger(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "miditime: %v\n", err)
		os.Exit(1)
	}
	log := logger.Component("miditime")

	if *midiPath == "" || *soundFontPath == "" {
		fmt.Fprintln(os.Stderr, "usage: miditime -midi FILE.mid -soundfont FILE.sf2")
		os.Exit(1)
	}

	if err := run(*midiPath, *soundFontPath, *mtcFPS, *clocksPerQuarter, *tempoFactor, *mute); err != nil {
		log.Error("playback failed", "error", err)
		os.Exit(1)
	}
}

func run(midiPath, soundFontPath string, mtcFPS, clocksPerQuarter int, tempoFactor float64, mute bool) error {
	log := logger.Component("miditime")

	soundFont, err := synth.LoadSoundFont(soundFontPath)
	if err != nil {
		return err
	}
	bridge, err := synth.NewBridge(soundFont, sampleRate)
	if err != nil {
		return err
	}
	stream := synth.NewStream(bridge)
	player, err := synth.NewPlayer(stream, sampleRate, mute)
	if err != nil {
		return fmt.Errorf("miditime: start audio player: %w", err)
	}
	defer player.Close()

	target := sequencer.NewMessageTarget(bridge)

	midiFile, err := os.Open(midiPath)
	if err != nil {
		return fmt.Errorf("miditime: open %s: %w", midiPath, err)
	}
	defer midiFile.Close()

	source, err := midisource.LoadSMF(midiFile, target)
	if err != nil {
		return fmt.Errorf("miditime: load %s: %w", midiPath, err)
	}

	eng := sequencer.NewEngine()
	if err := eng.SetSource(source); err != nil {
		return err
	}
	eng.SetTempoFactor(tempoFactor)

	if clocksPerQuarter > 0 {
		if err := eng.SetClocksPerQuarter(clocksPerQuarter); err != nil {
			return err
		}
		log.Info("running as external-clock slave", "clocks_per_quarter", clocksPerQuarter)
	}

	if mtcFPS > 0 {
		mtc, err := sequencer.NewMTCGenerator(mtcFPS, false, target)
		if err != nil {
			return err
		}
		if err := eng.SetMTCGenerator(mtc); err != nil {
			return err
		}
	}

	if err := eng.SetStopOnEmpty(true); err != nil {
		return err
	}

	log.Info("playing", "midi", midiPath, "soundfont", soundFontPath, "duration", source.Duration())

	done := make(chan struct{})
	eng.AddListener(func(state sequencer.RunState) {
		log.Info("state changed", "state", state)
		if state == sequencer.StateStopped {
			close(done)
		}
	})

	if err := eng.Play(); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	select {
	case <-done:
	case <-interrupt:
		eng.Stop()
	case <-time.After(source.Duration() + 5*time.Second):
		eng.Stop()
	}
	return nil
}
