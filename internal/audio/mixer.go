package audio

import (
	"math"
	"sync"
	"sync/atomic"
)

// Mixer is the render-thread half of a backend. Schedule may be called from
// any goroutine; Process must be called by a single goroutine at a time.
type Mixer struct {
	sampleRate int
	frame      atomic.Int64
	masterGain atomic.Uint64
	closed     atomic.Bool

	mu      sync.Mutex
	pending []Voice

	active  []Voice
	reverb  atomic.Pointer[Reverb]
	limiter *Limiter
	nActive atomic.Int32
}

// NewMixer creates a mixer whose clock starts at frame 0.
func NewMixer(sampleRate int) *Mixer {
	m := &Mixer{
		sampleRate: sampleRate,
		limiter:    NewLimiter(sampleRate, DefaultLimiterParams()),
	}
	m.masterGain.Store(math.Float64bits(1))
	return m
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// CurrentTime returns the number of rendered frames in seconds.
func (m *Mixer) CurrentTime() float64 {
	return float64(m.frame.Load()) / float64(m.sampleRate)
}

// Frame returns the number of rendered frames.
func (m *Mixer) Frame() int64 { return m.frame.Load() }

// SetMasterGain scales the mixed output. 1.0 is unity.
func (m *Mixer) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	m.masterGain.Store(math.Float64bits(gain))
}

func (m *Mixer) MasterGain() float64 {
	return math.Float64frombits(m.masterGain.Load())
}

// SetReverb installs a master-bus reverb, or removes it when r is nil. The
// reverb is then owned by the render thread.
func (m *Mixer) SetReverb(r *Reverb) {
	m.reverb.Store(r)
}

// Schedule queues a voice for the render thread. Voices whose start frame has
// already been rendered begin at the next processed frame.
func (m *Mixer) Schedule(v Voice) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.mu.Lock()
	m.pending = append(m.pending, v)
	m.mu.Unlock()
	return nil
}

// Pending returns the number of voices not yet picked up by Process.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Active returns the number of voices currently being mixed.
func (m *Mixer) Active() int { return int(m.nActive.Load()) }

func (m *Mixer) close() {
	m.closed.Store(true)
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
}

// Process renders len(dst)/2 stereo frames into dst and advances the clock.
func (m *Mixer) Process(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	frames := int64(len(dst) / 2)
	if frames == 0 {
		return
	}
	start := m.frame.Load()
	end := start + frames

	m.mu.Lock()
	kept := m.pending[:0]
	for _, v := range m.pending {
		vs, _ := v.Frames()
		if vs < end {
			m.active = append(m.active, v)
		} else {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(m.pending); i++ {
		m.pending[i] = nil
	}
	m.pending = kept
	m.mu.Unlock()

	live := m.active[:0]
	for _, v := range m.active {
		v.Mix(dst, start)
		if _, ve := v.Frames(); ve > end {
			live = append(live, v)
		}
	}
	// Finished voices are released here; nothing else holds them.
	for i := len(live); i < len(m.active); i++ {
		m.active[i] = nil
	}
	m.active = live
	m.nActive.Store(int32(len(live)))

	if rv := m.reverb.Load(); rv != nil {
		for i := 0; i+1 < len(dst); i += 2 {
			dst[i], dst[i+1] = rv.Process(dst[i], dst[i+1])
		}
	}
	gain := float32(m.MasterGain())
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = m.limiter.Process(dst[i]*gain, dst[i+1]*gain)
	}
	m.frame.Store(end)
}
