package voice

import "math"

// Envelope is an ADSR shape evaluated from the time since the voice started.
// Release ends exactly at Duration and never takes more than half of it, so
// short notes still reach their attack peak.
type Envelope struct {
	Peak     float64
	Attack   float64
	Decay    float64
	Sustain  float64 // fraction of Peak
	Release  float64
	Duration float64
}

func envelopeFor(p Params, duration float64) Envelope {
	return Envelope{
		Peak:     p.Peak,
		Attack:   p.AttackSec,
		Decay:    p.DecaySec,
		Sustain:  p.SustainLvl,
		Release:  p.ReleaseSec,
		Duration: duration,
	}
}

// At returns the gain t seconds after the start.
func (e Envelope) At(t float64) float64 {
	if t < 0 || t >= e.Duration {
		return 0
	}
	rel := math.Min(e.Release, e.Duration/2)
	relStart := e.Duration - rel
	if t < relStart {
		return e.held(t)
	}
	if rel <= 0 {
		return 0
	}
	return e.held(relStart) * (e.Duration - t) / rel
}

// held is the attack/decay/sustain curve without release.
func (e Envelope) held(t float64) float64 {
	if t < e.Attack && e.Attack > 0 {
		return e.Peak * t / e.Attack
	}
	t -= e.Attack
	low := e.Peak * e.Sustain
	if t < e.Decay && e.Decay > 0 {
		return e.Peak + (low-e.Peak)*t/e.Decay
	}
	return low
}
