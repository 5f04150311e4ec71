// Package sketchplay plays chord progressions and melodies with sample-accurate
// timing. A Transport owns the audio backend and a look-ahead scheduler; Play
// and Stop are its whole control surface.
package sketchplay

import (
	"errors"
	"sync"
	"time"

	"github.com/cbegin/sketchplay/internal/audio"
	"github.com/cbegin/sketchplay/internal/logger"
	"github.com/cbegin/sketchplay/internal/scheduler"
	"github.com/cbegin/sketchplay/internal/song"
	"github.com/cbegin/sketchplay/internal/voice"
)

type (
	Document = song.Document
	Step     = song.Step
	Note     = song.Note

	Backend        = audio.Backend
	Voice          = audio.Voice
	BackendFactory = audio.Factory

	Event     = scheduler.Event
	EventKind = scheduler.EventKind
)

const (
	EventStep          = scheduler.EventStep
	EventLoopCompleted = scheduler.EventLoopCompleted
	EventStopped       = scheduler.EventStopped
)

const DefaultSampleRate = 48000

// NewDocument returns an empty document at 120 BPM in 4/4.
func NewDocument() Document { return song.New() }

type TransportOption func(*transportConfig)

type transportConfig struct {
	sampleRate   int
	lookAhead    time.Duration
	pollInterval time.Duration
	factory      audio.Factory
	log          logger.Logger
	vibrato      bool
	reverb       float64
	newTimer     scheduler.TimerFactory
}

func defaultTransportConfig() transportConfig {
	return transportConfig{
		sampleRate:   DefaultSampleRate,
		lookAhead:    scheduler.DefaultLookAhead,
		pollInterval: scheduler.DefaultPollInterval,
		factory:      audio.OutputFactory(audio.DefaultBufferSize),
		log:          logger.Default(),
		newTimer:     scheduler.NewTicker,
	}
}

func WithSampleRate(sampleRate int) TransportOption {
	return func(cfg *transportConfig) {
		if sampleRate > 0 {
			cfg.sampleRate = sampleRate
		}
	}
}

// WithLookAhead sets how far ahead of the audio clock voices are scheduled.
func WithLookAhead(d time.Duration) TransportOption {
	return func(cfg *transportConfig) {
		if d > 0 {
			cfg.lookAhead = d
		}
	}
}

// WithPollInterval sets the scheduler wake period.
func WithPollInterval(d time.Duration) TransportOption {
	return func(cfg *transportConfig) {
		if d > 0 {
			cfg.pollInterval = d
		}
	}
}

// WithBackendFactory replaces the speaker backend, e.g. with OfflineFactory.
func WithBackendFactory(f BackendFactory) TransportOption {
	return func(cfg *transportConfig) {
		if f != nil {
			cfg.factory = f
		}
	}
}

func WithLogger(l logger.Logger) TransportOption {
	return func(cfg *transportConfig) {
		if l != nil {
			cfg.log = l
		}
	}
}

// WithVibrato enables a gentle delayed vibrato on melody voices.
func WithVibrato(enabled bool) TransportOption {
	return func(cfg *transportConfig) {
		cfg.vibrato = enabled
	}
}

// WithReverb adds a room reverb to the master bus with the given wet mix
// (0 disables it).
func WithReverb(wet float64) TransportOption {
	return func(cfg *transportConfig) {
		cfg.reverb = wet
	}
}

func withTimerFactory(f scheduler.TimerFactory) TransportOption {
	return func(cfg *transportConfig) {
		cfg.newTimer = f
	}
}

// SpeakerFactory opens the system audio device with the given buffer size.
func SpeakerFactory(bufferSize time.Duration) BackendFactory {
	return audio.OutputFactory(bufferSize)
}

// Transport is the playback controller. The backend is created on the first
// Play and kept open across Stop; Close releases it.
type Transport struct {
	mu       sync.Mutex
	cfg      transportConfig
	backend  audio.Backend
	sched    *scheduler.Scheduler
	renderer *voice.Renderer

	eventCh   chan Event
	eventChMu sync.Mutex
}

func NewTransport(opts ...TransportOption) *Transport {
	cfg := defaultTransportConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Transport{cfg: cfg}
}

// Play stops any running session and starts doc from beat 0. The document is
// copied; later edits take effect on the next Play. An invalid document is
// logged and leaves the current session playing. A backend that cannot be
// opened or resumed is logged and leaves the transport stopped.
func (t *Transport) Play(doc Document) {
	if err := doc.Validate(); err != nil {
		t.cfg.log.Error("play rejected", err, logger.Fields{"bpm": doc.TempoBPM})
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sched != nil {
		t.sched.Stop()
	}
	if err := t.ensureBackend(); err != nil {
		t.cfg.log.Error("audio backend unavailable", err, logger.Fields{"sample_rate": t.cfg.sampleRate})
		return
	}
	if t.backend.Suspended() {
		if err := t.backend.Resume(); err != nil {
			t.cfg.log.Error("audio backend resume failed", err, nil)
			return
		}
	}
	if err := t.sched.Start(doc, t.backend.CurrentTime()); err != nil {
		t.cfg.log.Error("scheduler start failed", err, nil)
	}
}

// ensureBackend creates the backend and its scheduler if absent. t.mu must
// be held.
func (t *Transport) ensureBackend() error {
	if t.backend != nil {
		return nil
	}
	b, err := t.cfg.factory(t.cfg.sampleRate)
	if err != nil {
		return err
	}
	if b == nil {
		return errors.New("backend factory returned nil")
	}
	r := voice.NewRenderer(b)
	if t.cfg.vibrato {
		p := r.Params(voice.Melody)
		p.Vibrato = voice.DefaultVibrato()
		r.SetParams(voice.Melody, p)
	}
	if t.cfg.reverb > 0 {
		if m, ok := b.(interface{ SetReverb(*audio.Reverb) }); ok {
			m.SetReverb(audio.DefaultReverb(b.SampleRate(), t.cfg.reverb))
		}
	}
	t.backend = b
	t.renderer = r
	t.sched = scheduler.New(b, r, scheduler.Options{
		LookAhead:    t.cfg.lookAhead,
		PollInterval: t.cfg.pollInterval,
		NewTimer:     t.cfg.newTimer,
		Logger:       t.cfg.log,
		OnEvent:      t.sendEvent,
	})
	t.cfg.log.Debug("audio backend created", logger.Fields{"sample_rate": b.SampleRate()})
	return nil
}

// Stop halts scheduling. Voices already scheduled play out and the backend
// stays open for the next Play. Stop is idempotent.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sched != nil {
		t.sched.Stop()
	}
}

func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sched != nil && t.sched.Running()
}

// Position returns the beat currently being heard, in [0, loop length).
func (t *Transport) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sched == nil {
		return 0
	}
	return t.sched.Position(t.backend.CurrentTime())
}

// Close stops playback and releases the backend. A later Play opens a new
// one.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.backend == nil {
		return nil
	}
	t.sched.Stop()
	err := t.backend.Close()
	t.backend = nil
	t.sched = nil
	t.renderer = nil
	return err
}

// Watch returns a channel that receives playback events:
//   - EventStep: a progression step was scheduled (Time is when it sounds)
//   - EventLoopCompleted: the beat position wrapped to the start
//   - EventStopped: the session was stopped
//
// The channel is buffered (cap 8); receive in a goroutine to avoid dropping
// events. Only the most recent Watch() channel receives events.
func (t *Transport) Watch() <-chan Event {
	ch := make(chan Event, 8)
	t.eventChMu.Lock()
	t.eventCh = ch
	t.eventChMu.Unlock()
	return ch
}

func (t *Transport) sendEvent(ev Event) {
	t.eventChMu.Lock()
	ch := t.eventCh
	t.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}
