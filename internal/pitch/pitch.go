package pitch

import (
	"math"
	"strconv"
)

// Names of the twelve chromatic pitch classes, sharps only.
var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

const (
	// LowOctave and HighOctave bound the table (inclusive).
	LowOctave  = 3
	HighOctave = 5

	// Size is the number of entries in the table.
	Size = (HighOctave - LowOctave + 1) * len(pitchClasses)

	concertA = 440.0
	midiA4   = 69
)

type entry struct {
	name string
	freq float64
}

var (
	entries [Size]entry
	byName  = make(map[string]int, Size)
)

func init() {
	for i := range entries {
		octave := LowOctave + i/len(pitchClasses)
		name := pitchClasses[i%len(pitchClasses)] + strconv.Itoa(octave)
		midi := (octave+1)*12 + i%len(pitchClasses)
		entries[i] = entry{
			name: name,
			freq: concertA * math.Pow(2, float64(midi-midiA4)/12.0),
		}
		byName[name] = i
	}
}

// Frequency returns the equal-tempered frequency in Hz for an exact pitch name
// such as "C4" or "F#3". Flat spellings and octave-less names are not found.
func Frequency(name string) (float64, bool) {
	i, ok := byName[name]
	if !ok {
		return 0, false
	}
	return entries[i].freq, true
}

// Index returns the chromatic position of name within the table, 0 being C3.
func Index(name string) (int, bool) {
	i, ok := byName[name]
	return i, ok
}

// NameAt returns the pitch name at chromatic position i.
func NameAt(i int) (string, bool) {
	if i < 0 || i >= Size {
		return "", false
	}
	return entries[i].name, true
}

// FrequencyAt returns the frequency at chromatic position i.
func FrequencyAt(i int) (float64, bool) {
	if i < 0 || i >= Size {
		return 0, false
	}
	return entries[i].freq, true
}

// PitchClasses returns the sharp spellings of the twelve pitch classes, C first.
func PitchClasses() []string {
	out := make([]string, len(pitchClasses))
	copy(out, pitchClasses[:])
	return out
}
