package voice

import "github.com/cbegin/sketchplay/internal/lfo"

// Role selects how a voice sits in the mix.
type Role int

const (
	Harmony Role = iota
	Melody
)

func (r Role) String() string {
	switch r {
	case Melody:
		return "melody"
	case Harmony:
		return "harmony"
	}
	return "unknown"
}

// Params controls one role's voices.
type Params struct {
	Peak       float64 // envelope peak gain
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64 // fraction of Peak
	ReleaseSec float64
	LPFCutoff  float64 // Hz, applied twice (two one-pole stages)
	Harmonics  int     // partials in the wavetable
	Vibrato    lfo.LFO // pitch modulation in semitones; zero value disables
}

// DefaultParams returns the tunables for role. Melody voices are louder and
// brighter than the chord bed.
func DefaultParams(role Role) Params {
	p := Params{
		AttackSec:  0.01,
		DecaySec:   0.2,
		SustainLvl: 0.3,
		ReleaseSec: 0.1,
		Harmonics:  8,
	}
	switch role {
	case Melody:
		p.Peak = 0.3
		p.LPFCutoff = 3200
	default:
		p.Peak = 0.12
		p.LPFCutoff = 1400
	}
	return p
}

// DefaultVibrato is a gentle delayed vibrato for melody voices.
func DefaultVibrato() lfo.LFO {
	return lfo.LFO{Depth: 0.15, RateHz: 5.5, Waveform: lfo.WaveSine, Delay: 0.15, Fade: 0.2}
}
