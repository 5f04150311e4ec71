package audio

import "math"

// LimiterParams configures the master-bus limiter.
type LimiterParams struct {
	ThresholdDB float64 // level above which gain reduction starts
	Ratio       float64 // compression ratio above threshold
	AttackMs    float64
	ReleaseMs   float64
	Ceiling     float64 // hard clip level after gain reduction
}

func DefaultLimiterParams() LimiterParams {
	return LimiterParams{
		ThresholdDB: -6,
		Ratio:       8,
		AttackMs:    1,
		ReleaseMs:   120,
		Ceiling:     1,
	}
}

// Limiter is a stereo-linked peak compressor that keeps a busy chord bed plus
// melody from clipping the output.
type Limiter struct {
	threshold float64
	ratio     float64
	attack    float64
	release   float64
	ceiling   float64
	env       float64
}

func NewLimiter(sampleRate int, p LimiterParams) *Limiter {
	sr := float64(sampleRate)
	if p.Ratio < 1 {
		p.Ratio = 1
	}
	if p.Ceiling <= 0 {
		p.Ceiling = 1
	}
	return &Limiter{
		threshold: math.Pow(10, p.ThresholdDB/20),
		ratio:     p.Ratio,
		attack:    1 - math.Exp(-1/(p.AttackMs*sr/1000)),
		release:   1 - math.Exp(-1/(p.ReleaseMs*sr/1000)),
		ceiling:   p.Ceiling,
	}
}

func (lm *Limiter) Process(l, r float32) (float32, float32) {
	peak := math.Max(math.Abs(float64(l)), math.Abs(float64(r)))
	if peak > lm.env {
		lm.env += lm.attack * (peak - lm.env)
	} else {
		lm.env += lm.release * (peak - lm.env)
	}
	g := lm.gain()
	return lm.clip(float64(l) * g), lm.clip(float64(r) * g)
}

func (lm *Limiter) gain() float64 {
	if lm.env <= lm.threshold || lm.threshold <= 0 {
		return 1
	}
	over := lm.env / lm.threshold
	return math.Pow(over, 1/lm.ratio-1)
}

func (lm *Limiter) clip(v float64) float32 {
	if v > lm.ceiling {
		return float32(lm.ceiling)
	}
	if v < -lm.ceiling {
		return float32(-lm.ceiling)
	}
	return float32(v)
}
