package audio

import "math"

// Reverb is a small Schroeder room (four combs into two allpasses) that the
// mixer can run on the master bus before the limiter.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float64
}

type delayLine struct {
	buf []float64
	pos int
	fb  float64
}

// NewReverb builds a room. size (0..1) scales the delay lengths, decay
// (0..0.95) the comb feedback and wet (0..1) the mix.
func NewReverb(sampleRate int, size, decay, wet float64) *Reverb {
	base := int(float64(sampleRate) * clampUnit(size) * 0.05)
	if base < 10 {
		base = 10
	}
	r := &Reverb{wet: clampUnit(wet)}
	fb := math.Min(math.Max(decay, 0), 0.95)
	for i, ratio := range [4]float64{1, 1.117, 1.271, 1.437} {
		r.combs[i] = delayLine{buf: make([]float64, int(float64(base)*ratio)), fb: fb}
	}
	for i, ratio := range [2]float64{0.347, 0.213} {
		r.allpass[i] = delayLine{buf: make([]float64, max(int(float64(base)*ratio), 1)), fb: 0.5}
	}
	return r
}

// DefaultReverb is a short, dry-leaning room.
func DefaultReverb(sampleRate int, wet float64) *Reverb {
	return NewReverb(sampleRate, 0.6, 0.7, wet)
}

func (r *Reverb) Wet() float64 { return r.wet }

func (r *Reverb) Process(l, rt float32) (float32, float32) {
	in := (float64(l) + float64(rt)) / 2
	var acc float64
	for i := range r.combs {
		acc += r.combs[i].comb(in)
	}
	acc /= 4
	for i := range r.allpass {
		acc = r.allpass[i].allpassStep(acc)
	}
	dry := 1 - r.wet
	return float32(float64(l)*dry + acc*r.wet), float32(float64(rt)*dry + acc*r.wet)
}

func (d *delayLine) comb(in float64) float64 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *delayLine) allpassStep(in float64) float64 {
	held := d.buf[d.pos]
	d.buf[d.pos] = in + held*d.fb
	d.advance()
	return held - in
}

func (d *delayLine) advance() {
	d.pos++
	if d.pos == len(d.buf) {
		d.pos = 0
	}
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
