package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cbegin/sketchplay"
	"github.com/cbegin/sketchplay/internal/song"
)

const (
	defaultChords = "C:4 G:4 Am:4 F:4"
	defaultMelody = "E4@0:1 G4@1 C5@2:2 B4@4:1 G4@5 D5@6:2 C5@8:2 A4@10:2 A4@12:1 C5@13 F4@14:2"
)

// loadDocument builds the song to play: a saved file when path is set,
// otherwise the inline chords/melody, otherwise a built-in demo. Inline
// chords or melody replace the file's.
func loadDocument(path, chords, melody string, bpm float64) (sketchplay.Document, error) {
	doc := sketchplay.NewDocument()
	if strings.TrimSpace(path) != "" {
		f, err := os.Open(path)
		if err != nil {
			return doc, err
		}
		defer f.Close()
		doc, err = song.Decode(f)
		if err != nil {
			return doc, fmt.Errorf("%s: %w", path, err)
		}
	} else if strings.TrimSpace(chords) == "" && strings.TrimSpace(melody) == "" {
		chords, melody = defaultChords, defaultMelody
	}
	if strings.TrimSpace(chords) != "" {
		steps, err := song.ParseProgression(chords)
		if err != nil {
			return doc, err
		}
		doc.Progression = steps
	}
	if strings.TrimSpace(melody) != "" {
		notes, err := song.ParseMelody(melody)
		if err != nil {
			return doc, err
		}
		doc.Melody = notes
	}
	if bpm > 0 {
		doc.TempoBPM = bpm
	}
	return doc, doc.Validate()
}
