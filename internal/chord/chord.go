package chord

import (
	"strconv"
	"strings"

	"github.com/cbegin/sketchplay/internal/pitch"
)

// Quality names a chord's interval structure.
type Quality string

const (
	Major      Quality = "maj"
	Minor      Quality = "min"
	Diminished Quality = "dim"
	Augmented  Quality = "aug"
	Dominant7  Quality = "7"
	Major7     Quality = "maj7"
	Minor7     Quality = "min7"
)

// Roots are voiced in octave 3 so the chord bed sits below the melody.
const harmonyOctave = 3

var intervals = map[Quality][]int{
	Major:      {0, 4, 7},
	Minor:      {0, 3, 7},
	Diminished: {0, 3, 6},
	Augmented:  {0, 4, 8},
	Dominant7:  {0, 4, 7, 10},
	Major7:     {0, 4, 7, 11},
	Minor7:     {0, 3, 7, 10},
}

// enharmonic maps spellings outside the sharp-only pitch table onto it.
var enharmonic = map[string]string{
	"Cb": "B",
	"Db": "C#",
	"Eb": "D#",
	"Fb": "E",
	"Gb": "F#",
	"Ab": "G#",
	"Bb": "A#",
	"E#": "F",
	"B#": "C",
}

// Chord is a parsed chord symbol.
type Chord struct {
	Symbol  string
	Root    string // sharp spelling, no octave
	Quality Quality
}

// Intervals returns the semitone offsets from the root.
func (c Chord) Intervals() []int {
	iv := intervals[c.Quality]
	out := make([]int, len(iv))
	copy(out, iv)
	return out
}

// Parse splits a chord symbol into root and quality. It reports false when
// the root is not a letter A-G.
//
// Supported grammar, after the root and optional '#'/'b' accidental:
//
//	dim...        diminished triad
//	aug...        augmented triad
//	maj7, Maj7    major seventh ("maj" alone is a major triad)
//	m..., min...  minor triad, minor seventh if the suffix contains '7'
//	...7          dominant seventh
//	anything else major triad (sus, 6, add9 and slash chords included)
func Parse(symbol string) (Chord, bool) {
	s := strings.TrimSpace(symbol)
	if s == "" {
		return Chord{}, false
	}
	letter := strings.ToUpper(s[:1])
	if letter[0] < 'A' || letter[0] > 'G' {
		return Chord{}, false
	}
	root := letter
	suffix := s[1:]
	if strings.HasPrefix(suffix, "#") || strings.HasPrefix(suffix, "b") {
		root += suffix[:1]
		suffix = suffix[1:]
	}
	if sharp, ok := enharmonic[root]; ok {
		root = sharp
	}
	return Chord{Symbol: symbol, Root: root, Quality: classify(suffix)}, true
}

func classify(suffix string) Quality {
	lower := strings.ToLower(suffix)
	switch {
	case strings.HasPrefix(suffix, "dim"):
		return Diminished
	case strings.HasPrefix(suffix, "aug"):
		return Augmented
	case strings.HasPrefix(lower, "maj"):
		if strings.Contains(suffix, "7") {
			return Major7
		}
		return Major
	case strings.HasPrefix(suffix, "m"):
		if strings.Contains(suffix, "7") {
			return Minor7
		}
		return Minor
	case strings.HasSuffix(suffix, "7"):
		return Dominant7
	}
	return Major
}

// Resolve returns the frequencies of a chord symbol voiced from octave 3,
// root first. Intervals that run past the top of the pitch table are
// dropped. An unrecognised root yields an empty slice.
func Resolve(symbol string) []float64 {
	c, ok := Parse(symbol)
	if !ok {
		return []float64{}
	}
	rootIdx, ok := pitch.Index(c.Root + strconv.Itoa(harmonyOctave))
	if !ok {
		return []float64{}
	}
	iv := intervals[c.Quality]
	freqs := make([]float64, 0, len(iv))
	for _, semis := range iv {
		f, ok := pitch.FrequencyAt(rootIdx + semis)
		if !ok {
			continue
		}
		freqs = append(freqs, f)
	}
	return freqs
}
