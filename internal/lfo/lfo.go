package lfo

import "math"

// Waveform selects the LFO shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSaw
	WaveSquare
)

// LFO is a low-frequency oscillator evaluated as a pure function of time, so
// a voice can ask for its modulation at any absolute offset without carrying
// per-sample phase state.
type LFO struct {
	Depth    float64  // peak deviation; units depend on the target (semitones for pitch)
	RateHz   float64  // cycles per second
	Waveform Waveform // shape
	Delay    float64  // seconds before modulation starts
	Fade     float64  // seconds to ramp depth from 0 to Depth after Delay
}

// Active reports whether the LFO produces any modulation.
func (l LFO) Active() bool {
	return l.Depth != 0 && l.RateHz > 0
}

// At returns the modulation value t seconds after the LFO was started, in
// [-Depth, +Depth]. Phase starts at zero when the delay ends.
func (l LFO) At(t float64) float64 {
	if !l.Active() || t < l.Delay {
		return 0
	}
	t -= l.Delay
	depth := l.Depth
	if l.Fade > 0 && t < l.Fade {
		depth *= t / l.Fade
	}
	_, phase := math.Modf(t * l.RateHz)
	return shape(l.Waveform, phase) * depth
}

// shape maps a phase in [0, 1) to [-1, 1].
func shape(w Waveform, phase float64) float64 {
	switch w {
	case WaveTriangle:
		if phase < 0.25 {
			return 4 * phase
		}
		if phase < 0.75 {
			return 2 - 4*phase
		}
		return 4*phase - 4
	case WaveSaw:
		return 1 - 2*phase
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// SemitoneRatio converts a pitch deviation in semitones to a frequency ratio.
func SemitoneRatio(semitones float64) float64 {
	if semitones == 0 {
		return 1
	}
	return math.Pow(2, semitones/12)
}
