package audio

import "sync"

// Offline is a backend whose clock advances only when Render is called. It
// drives tests and file rendering with the same mixer the speaker uses.
type Offline struct {
	*Mixer
	mu        sync.Mutex
	suspended bool
	closed    bool
}

func NewOffline(sampleRate int) *Offline {
	return &Offline{Mixer: NewMixer(sampleRate), suspended: true}
}

// OfflineFactory returns a Factory producing Offline backends and records
// each one in created, if non-nil.
func OfflineFactory(created *[]*Offline) Factory {
	return func(sampleRate int) (Backend, error) {
		o := NewOffline(sampleRate)
		if created != nil {
			*created = append(*created, o)
		}
		return o, nil
	}
}

func (o *Offline) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	o.suspended = false
	return nil
}

func (o *Offline) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended
}

func (o *Offline) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		o.suspended = true
		o.Mixer.close()
	}
	return nil
}

// Render processes frames stereo frames and returns them interleaved.
func (o *Offline) Render(frames int) []float32 {
	out := make([]float32, frames*2)
	o.Process(out)
	return out
}
