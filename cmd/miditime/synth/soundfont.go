package synth

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// LoadSoundFont reads and parses the SF2 file at path.
func LoadSoundFont(path string) (*meltysynth.SoundFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("synth: read soundfont %s: %w", path, err)
	}
	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("synth: parse soundfont %s: %w", path, err)
	}
	return soundFont, nil
}
