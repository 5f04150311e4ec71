package song

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// wireSong mirrors the subset of the editor's saved song that playback uses.
// Lyrics, sections and chord function tags are ignored.
type wireSong struct {
	BPM           float64    `json:"bpm"`
	TimeSignature string     `json:"timeSignature"`
	Progression   []wireStep `json:"progression"`
	Melody        []wireNote `json:"melody"`
}

type wireStep struct {
	Chord struct {
		Name string `json:"name"`
	} `json:"chord"`
	DurationBeats float64 `json:"durationBeats"`
}

type wireNote struct {
	Pitch         string  `json:"pitch"`
	StartBeat     float64 `json:"startBeat"`
	DurationBeats float64 `json:"durationBeats"`
}

// Decode reads a saved song as JSON. Missing tempo and meter take the
// defaults of New.
func Decode(r io.Reader) (Document, error) {
	var w wireSong
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Document{}, fmt.Errorf("decode song: %w", err)
	}
	doc := New()
	if w.BPM > 0 {
		doc.TempoBPM = w.BPM
	}
	if w.TimeSignature != "" {
		doc.TimeSignature = w.TimeSignature
	}
	for _, st := range w.Progression {
		doc.Progression = append(doc.Progression, Step{Chord: st.Chord.Name, DurationBeats: st.DurationBeats})
	}
	for _, n := range w.Melody {
		doc.Melody = append(doc.Melody, Note(n))
	}
	return doc, doc.Validate()
}

// ParseProgression reads a whitespace-separated list of "chord:beats" items,
// e.g. "C:4 G7:4 Am:2 F:2". A missing ":beats" means 4 beats.
func ParseProgression(src string) ([]Step, error) {
	var steps []Step
	for _, tok := range strings.Fields(src) {
		name, beatsText, hasBeats := strings.Cut(tok, ":")
		beats := 4.0
		if hasBeats {
			v, err := strconv.ParseFloat(beatsText, 64)
			if err != nil {
				return nil, fmt.Errorf("progression item %q: %w", tok, err)
			}
			beats = v
		}
		if name == "" {
			return nil, fmt.Errorf("progression item %q: missing chord", tok)
		}
		steps = append(steps, Step{Chord: name, DurationBeats: beats})
	}
	return steps, nil
}

// ParseMelody reads a whitespace-separated list of "pitch@start:beats" items,
// e.g. "E4@0:1 G4@1.5:0.5". A missing ":beats" means a quarter beat, the
// sketchpad's grid step.
func ParseMelody(src string) ([]Note, error) {
	var notes []Note
	for _, tok := range strings.Fields(src) {
		name, rest, ok := strings.Cut(tok, "@")
		if !ok || name == "" {
			return nil, fmt.Errorf("melody item %q: want pitch@start[:beats]", tok)
		}
		startText, beatsText, hasBeats := strings.Cut(rest, ":")
		start, err := strconv.ParseFloat(startText, 64)
		if err != nil {
			return nil, fmt.Errorf("melody item %q: %w", tok, err)
		}
		beats := 0.25
		if hasBeats {
			beats, err = strconv.ParseFloat(beatsText, 64)
			if err != nil {
				return nil, fmt.Errorf("melody item %q: %w", tok, err)
			}
		}
		notes = append(notes, Note{Pitch: name, StartBeat: start, DurationBeats: beats})
	}
	return notes, nil
}
