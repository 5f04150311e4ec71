package song

import (
	"errors"
	"fmt"
	"math"
)

// DefaultLoopBeats is the loop length used when a document has no
// progression: four bars of 4/4.
const DefaultLoopBeats = 16.0

const (
	DefaultTempoBPM      = 120.0
	DefaultTimeSignature = "4/4"

	// MaxTempoBPM bounds the tempo so a beat always moves the audio clock.
	MaxTempoBPM = 1000.0
)

var ErrInvalidDocument = errors.New("invalid document")

// Step is one chord of a progression.
type Step struct {
	Chord         string
	DurationBeats float64
}

// Note is one melody note. Overlapping notes are allowed.
type Note struct {
	Pitch         string
	StartBeat     float64
	DurationBeats float64
}

// Document is the musical material a playback session is built from. The
// scheduler takes a copy at start and never reads the caller's value again.
type Document struct {
	TempoBPM      float64
	TimeSignature string
	Progression   []Step
	Melody        []Note
}

// New returns an empty document at the default tempo and meter.
func New() Document {
	return Document{TempoBPM: DefaultTempoBPM, TimeSignature: DefaultTimeSignature}
}

// SecondsPerBeat returns 60/tempo.
func (d Document) SecondsPerBeat() float64 {
	return 60.0 / d.TempoBPM
}

// TotalBeats returns the length of one loop in beats. Empty progressions, or
// ones whose durations sum to zero, fall back to DefaultLoopBeats.
func (d Document) TotalBeats() float64 {
	total := 0.0
	for _, st := range d.Progression {
		total += st.DurationBeats
	}
	if total <= 0 {
		return DefaultLoopBeats
	}
	return total
}

// StepAt returns the index of the progression step covering beat, scanning
// linearly. Beats outside [0, TotalBeats) report false, as does an empty
// progression.
func (d Document) StepAt(beat float64) (int, bool) {
	start := 0.0
	for i, st := range d.Progression {
		end := start + st.DurationBeats
		if beat >= start && beat < end {
			return i, true
		}
		start = end
	}
	return 0, false
}

// Onsets returns the start beat of every progression step.
func (d Document) Onsets() []float64 {
	out := make([]float64, len(d.Progression))
	at := 0.0
	for i, st := range d.Progression {
		out[i] = at
		at += st.DurationBeats
	}
	return out
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	c := d
	c.Progression = append([]Step(nil), d.Progression...)
	c.Melody = append([]Note(nil), d.Melody...)
	return c
}

// Validate checks the invariants the scheduler relies on. Every number must
// be finite.
func (d Document) Validate() error {
	if !(d.TempoBPM > 0) || d.TempoBPM > MaxTempoBPM {
		return fmt.Errorf("%w: tempo must be in (0, %v], got %v", ErrInvalidDocument, MaxTempoBPM, d.TempoBPM)
	}
	for i, st := range d.Progression {
		if !finite(st.DurationBeats) || st.DurationBeats < 0 {
			return fmt.Errorf("%w: step %d (%s) has invalid duration %v", ErrInvalidDocument, i, st.Chord, st.DurationBeats)
		}
	}
	for i, n := range d.Melody {
		if !finite(n.StartBeat) || n.StartBeat < 0 {
			return fmt.Errorf("%w: note %d (%s) has invalid start %v", ErrInvalidDocument, i, n.Pitch, n.StartBeat)
		}
		if !finite(n.DurationBeats) || !(n.DurationBeats > 0) {
			return fmt.Errorf("%w: note %d (%s) has non-positive duration %v", ErrInvalidDocument, i, n.Pitch, n.DurationBeats)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
