// Package scheduler turns a song document into timestamped voices using
// look-ahead scheduling. A coarse repeating timer wakes the scheduler; each
// wake renders every event that falls within the look-ahead window of the
// audio clock, stamped with its exact audio-clock start time, so timer jitter
// never reaches the output.
package scheduler

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cbegin/sketchplay/internal/audio"
	"github.com/cbegin/sketchplay/internal/chord"
	"github.com/cbegin/sketchplay/internal/logger"
	"github.com/cbegin/sketchplay/internal/pitch"
	"github.com/cbegin/sketchplay/internal/song"
	"github.com/cbegin/sketchplay/internal/voice"
)

const (
	DefaultLookAhead    = 100 * time.Millisecond
	DefaultPollInterval = 25 * time.Millisecond

	// OnsetEpsilon is the tolerance, in beats, for matching an onset to a
	// beat position.
	OnsetEpsilon = 0.01
)

// ErrStalled is logged when one beat is too short to move the audio clock
// forward at the current time. The wake stops scheduling rather than spin.
var ErrStalled = errors.New("beat does not advance the clock")

// Renderer creates one voice. voice.Renderer satisfies it.
type Renderer interface {
	Render(freq, start, duration float64, role voice.Role) error
}

// EventKind identifies scheduler events.
type EventKind int

const (
	// EventStep fires when a progression step is scheduled.
	EventStep EventKind = iota
	// EventLoopCompleted fires when the beat position wraps to the start.
	EventLoopCompleted
	// EventStopped fires once when a session is stopped.
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventStep:
		return "step"
	case EventLoopCompleted:
		return "loop"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event describes something the scheduler just committed to the audio clock.
// Time is when it will be heard, which is up to the look-ahead window in the
// future.
type Event struct {
	Kind    EventKind
	Session string
	Step    int     // progression index (EventStep)
	Chord   string  // chord symbol (EventStep)
	Beat    float64 // loop-relative beat
	Time    float64 // audio-clock seconds
	Loop    int     // loops completed so far (EventLoopCompleted)
}

// Options configures a Scheduler. Zero values take the defaults.
type Options struct {
	LookAhead    time.Duration
	PollInterval time.Duration
	NewTimer     TimerFactory
	Logger       logger.Logger
	// OnEvent is called outside the scheduler lock for every event.
	OnEvent func(Event)
}

// Session is a snapshot of a running playback session.
type Session struct {
	ID               string
	Doc              song.Document
	TotalBeats       float64
	SecondsPerBeat   float64
	StartTime        float64 // audio-clock time of beat 0 of the first loop
	CurrentBeat      float64 // start of the next beat window to schedule
	NextScheduleTime float64 // audio-clock time of CurrentBeat
	Loops            int
}

// Scheduler drives one session at a time. All methods are safe for
// concurrent use. Renderer and OnEvent run outside the scheduler lock and may
// call Stop or Start.
type Scheduler struct {
	clock    audio.Clock
	renderer Renderer
	opts     Options
	log      logger.Logger
	late     rate.Sometimes

	// inLoop counts wake loops that are delivering voices and events, so a
	// Stop issued from those callbacks does not wait on its own goroutine.
	inLoop atomic.Int32

	mu      sync.Mutex
	running bool
	gen     uint64
	sess    Session
	onsets  []float64
	stop    chan struct{}
	done    chan struct{}

	eventMu sync.Mutex
	eventCh chan Event
}

// New returns a stopped scheduler reading time from clock.
func New(clock audio.Clock, r Renderer, opts Options) *Scheduler {
	if opts.LookAhead <= 0 {
		opts.LookAhead = DefaultLookAhead
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.NewTimer == nil {
		opts.NewTimer = NewTicker
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Scheduler{
		clock:    clock,
		renderer: r,
		opts:     opts,
		log:      log,
		late:     rate.Sometimes{First: 1, Interval: time.Second},
	}
}

// Start stops any running session and begins a new one for a copy of doc,
// with beat 0 at audio-clock time now. The first wake runs before Start
// returns.
func (s *Scheduler) Start(doc song.Document, now float64) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	s.Stop()

	snap := doc.Clone()
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.sess = Session{
		ID:               uuid.NewString(),
		Doc:              snap,
		TotalBeats:       snap.TotalBeats(),
		SecondsPerBeat:   snap.SecondsPerBeat(),
		StartTime:        now,
		CurrentBeat:      0,
		NextScheduleTime: now,
	}
	s.onsets = snap.Onsets()
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	timer := s.opts.NewTimer(s.opts.PollInterval)
	stop, done := s.stop, s.done

	s.log.Info("playback started", logger.Fields{
		"session":     s.sess.ID,
		"bpm":         snap.TempoBPM,
		"total_beats": s.sess.TotalBeats,
		"steps":       len(snap.Progression),
		"notes":       len(snap.Melody),
	})
	w := s.cycle(now)
	s.mu.Unlock()

	go s.loop(gen, timer, stop, done)
	s.deliver(w)
	return nil
}

func (s *Scheduler) loop(gen uint64, t Timer, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			s.inLoop.Add(1)
			ok := s.tick(gen)
			s.inLoop.Add(-1)
			if !ok {
				return
			}
		}
	}
}

// Stop halts scheduling and resets the position to beat 0. Voices already
// handed to the renderer still play out. Stop is idempotent and waits for
// the wake loop to exit, unless the loop is busy delivering a wake, in
// which case the loop exits right after that delivery.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	ev := Event{Kind: EventStopped, Session: s.sess.ID, Loop: s.sess.Loops}
	s.log.Info("playback stopped", logger.Fields{"session": s.sess.ID, "loops": s.sess.Loops})
	s.sess = Session{}
	s.onsets = nil
	s.mu.Unlock()

	if s.inLoop.Load() == 0 {
		<-done
	}
	s.emit([]Event{ev})
}

// Running reports whether a session is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick runs one wake cycle against the current audio clock. It reports
// whether a session is running.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.tick(gen)
}

func (s *Scheduler) tick(gen uint64) bool {
	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return false
	}
	w := s.cycle(s.clock.CurrentTime())
	s.mu.Unlock()
	s.deliver(w)
	return true
}

// Session returns a copy of the running session, or false when stopped.
func (s *Scheduler) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return Session{}, false
	}
	c := s.sess
	c.Doc = s.sess.Doc.Clone()
	return c, true
}

// Position returns the loop-relative beat being heard at audio-clock time
// now, or 0 when stopped.
func (s *Scheduler) Position(now float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	elapsed := now - s.sess.StartTime
	if elapsed <= 0 {
		return 0
	}
	return math.Mod(elapsed/s.sess.SecondsPerBeat, s.sess.TotalBeats)
}

// Events returns a channel that receives scheduler events. The channel is
// buffered (cap 16) and sends never block; events are dropped when it is
// full. Only the most recent Events channel receives events.
func (s *Scheduler) Events() <-chan Event {
	ch := make(chan Event, 16)
	s.eventMu.Lock()
	s.eventCh = ch
	s.eventMu.Unlock()
	return ch
}

func (s *Scheduler) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	s.eventMu.Lock()
	ch := s.eventCh
	s.eventMu.Unlock()
	for _, ev := range events {
		if s.opts.OnEvent != nil {
			s.opts.OnEvent(ev)
		}
		if ch == nil {
			continue
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// pendingVoice is a voice chosen under the lock and rendered after it.
type pendingVoice struct {
	freq, start, duration float64
	role                  voice.Role
}

// wake is the work one cycle produced.
type wake struct {
	session string
	voices  []pendingVoice
	events  []Event
}

// deliver hands a wake's voices to the renderer, then its events to the
// listeners. It runs without s.mu.
func (s *Scheduler) deliver(w wake) {
	if s.renderer != nil {
		for _, v := range w.voices {
			if err := s.renderer.Render(v.freq, v.start, v.duration, v.role); err != nil {
				s.log.Debug("voice dropped", logger.Fields{"session": w.session, "role": v.role.String(), "error": err.Error()})
			}
		}
	}
	s.emit(w.events)
}

// cycle schedules every beat window that starts before now + look-ahead.
// s.mu must be held.
func (s *Scheduler) cycle(now float64) wake {
	sess := &s.sess
	if lag := now - sess.NextScheduleTime; lag > 0 {
		s.late.Do(func() {
			s.log.Warn("scheduler woke late", logger.Fields{
				"session": sess.ID,
				"late_ms": lag * 1000,
				"beat":    sess.CurrentBeat,
			})
		})
	}
	horizon := now + s.opts.LookAhead.Seconds()
	w := wake{session: sess.ID}
	for sess.NextScheduleTime < horizon {
		nextTime := sess.NextScheduleTime + sess.SecondsPerBeat
		if !(nextTime > sess.NextScheduleTime) {
			s.log.Error("scheduler stalled", ErrStalled, logger.Fields{
				"session":          sess.ID,
				"seconds_per_beat": sess.SecondsPerBeat,
				"time":             sess.NextScheduleTime,
			})
			break
		}
		s.scheduleWindow(&w)
		next := sess.CurrentBeat + 1
		if next >= sess.TotalBeats {
			sess.Loops++
			w.events = append(w.events, Event{
				Kind:    EventLoopCompleted,
				Session: sess.ID,
				Time:    sess.NextScheduleTime + (sess.TotalBeats-sess.CurrentBeat)*sess.SecondsPerBeat,
				Loop:    sess.Loops,
			})
		}
		sess.NextScheduleTime = nextTime
		sess.CurrentBeat = math.Mod(next, sess.TotalBeats)
	}
	return w
}

// scheduleWindow collects everything whose onset falls in the beat window
// [CurrentBeat, CurrentBeat+1), both shifted down by OnsetEpsilon.
func (s *Scheduler) scheduleWindow(w *wake) {
	sess := &s.sess
	spb := sess.SecondsPerBeat
	for i, st := range sess.Doc.Progression {
		if st.DurationBeats <= 0 {
			continue
		}
		onset := s.onsets[i]
		eachOffset(onset, sess.CurrentBeat, sess.TotalBeats, func(d float64) {
			at := sess.NextScheduleTime + d*spb
			freqs := chord.Resolve(st.Chord)
			if len(freqs) == 0 {
				s.log.Debug("chord not recognised", logger.Fields{"session": sess.ID, "chord": st.Chord})
			}
			for _, f := range freqs {
				w.voices = append(w.voices, pendingVoice{f, at, st.DurationBeats * spb, voice.Harmony})
			}
			w.events = append(w.events, Event{
				Kind:    EventStep,
				Session: sess.ID,
				Step:    i,
				Chord:   st.Chord,
				Beat:    onset,
				Time:    at,
				Loop:    sess.Loops,
			})
		})
	}
	for _, n := range sess.Doc.Melody {
		// Notes past the end of the loop are never reached.
		if n.StartBeat >= sess.TotalBeats {
			continue
		}
		eachOffset(n.StartBeat, sess.CurrentBeat, sess.TotalBeats, func(d float64) {
			f, ok := pitch.Frequency(n.Pitch)
			if !ok {
				s.log.Debug("pitch not found", logger.Fields{"session": sess.ID, "pitch": n.Pitch})
				return
			}
			w.voices = append(w.voices, pendingVoice{f, sess.NextScheduleTime + d*spb, n.DurationBeats * spb, voice.Melody})
		})
	}
}

// eachOffset calls fn with every beat offset d of onset from beat, taken
// modulo total, that lies in [-OnsetEpsilon, 1-OnsetEpsilon). Offsets inside
// the tolerance before beat are reported as 0. More than one offset occurs
// only when the loop is shorter than a beat.
func eachOffset(onset, beat, total float64, fn func(d float64)) {
	d := math.Mod(onset-beat, total)
	if d < -OnsetEpsilon {
		d += total
	}
	if d >= total-OnsetEpsilon {
		d -= total
	}
	for ; d < 1-OnsetEpsilon; d += total {
		fn(math.Max(d, 0))
	}
}
