package voice

import (
	"errors"
	"math"

	"github.com/cbegin/sketchplay/internal/audio"
	"github.com/cbegin/sketchplay/internal/lfo"
)

const (
	twoPi    = math.Pi * 2
	tableLen = 2048
)

var ErrInvalidVoice = errors.New("voice: frequency and duration must be positive")

// Sink receives finished voices. audio.Backend satisfies it.
type Sink interface {
	SampleRate() int
	Schedule(v audio.Voice) error
}

// Renderer builds voices and hands them to a sink. It is not safe for
// concurrent use; one scheduler session owns it at a time.
type Renderer struct {
	sink   Sink
	params [2]Params
	tables map[int][]float64
}

// NewRenderer returns a renderer using the default params for both roles. A
// nil sink makes every Render a no-op that reports audio.ErrBackendUnavailable.
func NewRenderer(sink Sink) *Renderer {
	return &Renderer{
		sink:   sink,
		params: [2]Params{Harmony: DefaultParams(Harmony), Melody: DefaultParams(Melody)},
		tables: make(map[int][]float64),
	}
}

// SetParams replaces the tunables for role.
func (r *Renderer) SetParams(role Role, p Params) {
	if role == Melody {
		r.params[Melody] = p
		return
	}
	r.params[Harmony] = p
}

func (r *Renderer) Params(role Role) Params {
	if role == Melody {
		return r.params[Melody]
	}
	return r.params[Harmony]
}

// Render schedules one voice of freq Hz that starts at start seconds on the
// sink's clock and lasts duration seconds. The voice is not referenced again.
func (r *Renderer) Render(freq, start, duration float64, role Role) error {
	if r == nil || r.sink == nil {
		return audio.ErrBackendUnavailable
	}
	v, err := r.Build(freq, start, duration, role)
	if err != nil {
		return err
	}
	return r.sink.Schedule(v)
}

// Build returns the voice Render would schedule.
func (r *Renderer) Build(freq, start, duration float64, role Role) (*Voice, error) {
	if !(freq > 0) || !(duration > 0) {
		return nil, ErrInvalidVoice
	}
	if r.sink == nil {
		return nil, audio.ErrBackendUnavailable
	}
	p := r.Params(role)
	sr := float64(r.sink.SampleRate())
	if start < 0 {
		start = 0
	}
	startFrame := int64(math.Round(start * sr))
	frames := int64(math.Round(duration * sr))
	if frames < 1 {
		frames = 1
	}
	harmonics := p.Harmonics
	if harmonics < 1 {
		harmonics = 1
	}
	// Keep every partial below Nyquist.
	if limit := int(sr / 2 / freq); limit >= 1 && harmonics > limit {
		harmonics = limit
	}
	v := &Voice{
		role:       role,
		freq:       freq,
		sampleRate: sr,
		start:      startFrame,
		end:        startFrame + frames,
		env:        envelopeFor(p, duration),
		table:      r.table(harmonics),
		vibrato:    p.Vibrato,
		next:       -1,
	}
	if p.LPFCutoff > 0 && p.LPFCutoff < sr/2 {
		rc := 1.0 / (twoPi * p.LPFCutoff)
		dt := 1.0 / sr
		v.lpfAlpha = dt / (rc + dt)
	}
	return v, nil
}

// table returns a single-cycle band-limited sawtooth with n partials,
// normalised to a peak of 1.
func (r *Renderer) table(n int) []float64 {
	if t, ok := r.tables[n]; ok {
		return t
	}
	t := make([]float64, tableLen)
	peak := 0.0
	for i := range t {
		x := twoPi * float64(i) / tableLen
		for k := 1; k <= n; k++ {
			t[i] += math.Sin(x*float64(k)) / float64(k)
		}
		peak = math.Max(peak, math.Abs(t[i]))
	}
	if peak > 0 {
		for i := range t {
			t[i] /= peak
		}
	}
	r.tables[n] = t
	return t
}

// Voice is a single scheduled note. After construction only the render
// thread touches it.
type Voice struct {
	role       Role
	freq       float64
	sampleRate float64
	start, end int64
	env        Envelope
	table      []float64
	vibrato    lfo.LFO
	lpfAlpha   float64

	next  int64 // next frame Mix expects; -1 before the first call
	phase float64
	lp1   float64
	lp2   float64
}

func (v *Voice) Frames() (int64, int64) { return v.start, v.end }

func (v *Voice) Role() Role { return v.role }

func (v *Voice) Frequency() float64 { return v.freq }

// StartTime returns the start on the audio clock, in seconds.
func (v *Voice) StartTime() float64 { return float64(v.start) / v.sampleRate }

// Duration returns the voice length in seconds.
func (v *Voice) Duration() float64 { return float64(v.end-v.start) / v.sampleRate }

// GainAt returns the envelope gain t seconds after the voice starts.
func (v *Voice) GainAt(t float64) float64 { return v.env.At(t) }

// Mix adds the voice into interleaved stereo dst, whose first frame is frame.
// A voice first mixed after its start frame picks up its envelope and phase
// at the elapsed position.
func (v *Voice) Mix(dst []float32, frame int64) {
	n := int64(len(dst) / 2)
	for i := int64(0); i < n; i++ {
		f := frame + i
		if f < v.start {
			continue
		}
		if f >= v.end {
			return
		}
		if v.next < 0 || f != v.next {
			v.seek(f)
		}
		t := float64(f-v.start) / v.sampleRate
		s := v.sample(t)
		if v.lpfAlpha > 0 {
			v.lp1 += v.lpfAlpha * (s - v.lp1)
			v.lp2 += v.lpfAlpha * (v.lp1 - v.lp2)
			s = v.lp2
		}
		out := float32(s * v.env.At(t))
		dst[i*2] += out
		dst[i*2+1] += out
		v.next = f + 1
	}
}

// seek positions the oscillator at frame f without filter history.
func (v *Voice) seek(f int64) {
	t := float64(f-v.start) / v.sampleRate
	_, v.phase = math.Modf(t * v.freq)
	v.lp1, v.lp2 = 0, 0
}

// sample reads the wavetable at the current phase and advances it.
func (v *Voice) sample(t float64) float64 {
	pos := v.phase * tableLen
	i0 := int(pos)
	frac := pos - float64(i0)
	i0 %= tableLen
	i1 := (i0 + 1) % tableLen
	s := v.table[i0] + (v.table[i1]-v.table[i0])*frac

	freq := v.freq
	if v.vibrato.Active() {
		freq *= lfo.SemitoneRatio(v.vibrato.At(t))
	}
	v.phase += freq / v.sampleRate
	if v.phase >= 1 {
		v.phase -= math.Floor(v.phase)
	}
	return s
}
