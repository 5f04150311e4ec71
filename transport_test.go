package sketchplay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/sketchplay/internal/audio"
	"github.com/cbegin/sketchplay/internal/logger"
	"github.com/cbegin/sketchplay/internal/scheduler"
	"github.com/cbegin/sketchplay/internal/voice"
)

// countingFactory records every backend it creates, the way a test engine
// counts note-ons.
type countingFactory struct {
	mu        sync.Mutex
	created   []*fakeBackend
	err       error
	resumeErr error
}

type fakeBackend struct {
	*audio.Offline
	resumeErr error
	resumes   int
	// interrupted reports the backend as suspended, as when the platform
	// takes the audio device away.
	interrupted bool
}

func (b *fakeBackend) Suspended() bool {
	return b.interrupted || b.Offline.Suspended()
}

func (b *fakeBackend) Resume() error {
	b.resumes++
	if b.resumeErr != nil {
		return b.resumeErr
	}
	return b.Offline.Resume()
}

func (f *countingFactory) New(sampleRate int) (audio.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b := &fakeBackend{Offline: audio.NewOffline(sampleRate), resumeErr: f.resumeErr}
	f.created = append(f.created, b)
	return b, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func newTestTransport(f *countingFactory, log logger.Logger) *Transport {
	return NewTransport(
		WithSampleRate(8000),
		WithBackendFactory(f.New),
		WithLogger(log),
		withTimerFactory(scheduler.Idle),
	)
}

func demoDoc() Document {
	doc := NewDocument()
	doc.Progression = []Step{{Chord: "C", DurationBeats: 4}, {Chord: "G7", DurationBeats: 4}}
	doc.Melody = []Note{{Pitch: "E4", StartBeat: 0, DurationBeats: 1}}
	return doc
}

func TestPlayCreatesBackendLazilyAndResumesIt(t *testing.T) {
	f := &countingFactory{}
	tr := newTestTransport(f, &logger.Recorder{})
	defer tr.Close()

	assert.Equal(t, 0, f.count(), "no backend before first Play")
	tr.Play(demoDoc())
	require.Equal(t, 1, f.count())
	b := f.created[0]
	assert.False(t, b.Suspended())
	assert.Equal(t, 1, b.resumes)
	assert.True(t, tr.Playing())
	assert.Equal(t, 3+1, b.Pending(), "C triad and E4 scheduled at once")

	tr.Play(demoDoc())
	assert.Equal(t, 1, f.count(), "backend reused")
	assert.Equal(t, 1, b.resumes, "running backend is not resumed again")
}

func TestPlayRestartsSession(t *testing.T) {
	f := &countingFactory{}
	tr := newTestTransport(f, &logger.Recorder{})
	defer tr.Close()
	events := tr.Watch()

	tr.Play(demoDoc())
	first, ok := tr.sched.Session()
	require.True(t, ok)
	tr.Play(demoDoc())
	second, ok := tr.sched.Session()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)

	var kinds []EventKind
	for len(kinds) < 3 {
		kinds = append(kinds, (<-events).Kind)
	}
	assert.Equal(t, []EventKind{EventStep, EventStopped, EventStep}, kinds)
}

func TestPlayWithoutBackendIsNoop(t *testing.T) {
	f := &countingFactory{err: audio.ErrBackendUnavailable}
	log := &logger.Recorder{}
	tr := newTestTransport(f, log)

	assert.NotPanics(t, func() { tr.Play(demoDoc()) })
	assert.False(t, tr.Playing())
	assert.Equal(t, 0.0, tr.Position())
	assert.Equal(t, 1, log.Count("ERROR"))
	require.NoError(t, tr.Close())
}

func TestPlayWithResumeFailureIsNoop(t *testing.T) {
	f := &countingFactory{resumeErr: errors.New("not allowed")}
	log := &logger.Recorder{}
	tr := newTestTransport(f, log)
	defer tr.Close()

	tr.Play(demoDoc())
	assert.False(t, tr.Playing())
	assert.Equal(t, 0, f.created[0].Pending())
	assert.Equal(t, 1, log.Count("ERROR"))
}

func TestPlayStopsRunningSessionWhenResumeFails(t *testing.T) {
	f := &countingFactory{}
	log := &logger.Recorder{}
	tr := newTestTransport(f, log)
	defer tr.Close()
	events := tr.Watch()

	tr.Play(demoDoc())
	require.True(t, tr.Playing())
	b := f.created[0]
	b.interrupted = true
	b.resumeErr = errors.New("device lost")

	tr.Play(demoDoc())
	assert.False(t, tr.Playing())
	assert.Equal(t, 1, log.Count("ERROR"))
	assert.Equal(t, 2, b.resumes)

	var kinds []EventKind
	for len(kinds) < 2 {
		kinds = append(kinds, (<-events).Kind)
	}
	assert.Equal(t, []EventKind{EventStep, EventStopped}, kinds)
}

func TestPlayInvalidDocumentKeepsCurrentSession(t *testing.T) {
	f := &countingFactory{}
	log := &logger.Recorder{}
	tr := newTestTransport(f, log)
	defer tr.Close()

	tr.Play(Document{TempoBPM: -1})
	assert.Equal(t, 0, f.count())
	assert.False(t, tr.Playing())

	tr.Play(demoDoc())
	tr.Play(Document{TempoBPM: 0})
	assert.True(t, tr.Playing())
	assert.Equal(t, 2, log.Count("ERROR"))
}

func TestStopKeepsBackendOpen(t *testing.T) {
	f := &countingFactory{}
	tr := newTestTransport(f, &logger.Recorder{})
	defer tr.Close()

	tr.Stop()
	tr.Play(demoDoc())
	tr.Stop()
	tr.Stop()
	assert.False(t, tr.Playing())
	b := f.created[0]
	assert.False(t, b.Suspended(), "stop only halts scheduling")
	assert.Equal(t, 4, b.Pending(), "scheduled voices still play out")

	tr.Play(demoDoc())
	assert.True(t, tr.Playing())
	assert.Equal(t, 1, f.count())
}

func TestCloseReleasesBackend(t *testing.T) {
	f := &countingFactory{}
	tr := newTestTransport(f, &logger.Recorder{})

	tr.Play(demoDoc())
	require.NoError(t, tr.Close())
	assert.False(t, tr.Playing())
	assert.True(t, f.created[0].Suspended())
	require.NoError(t, tr.Close())

	tr.Play(demoDoc())
	assert.Equal(t, 2, f.count())
	assert.True(t, tr.Playing())
	require.NoError(t, tr.Close())
}

func TestPositionFollowsAudioClock(t *testing.T) {
	f := &countingFactory{}
	tr := newTestTransport(f, &logger.Recorder{})
	defer tr.Close()

	tr.Play(demoDoc())
	b := f.created[0]
	b.Render(8000 * 3 / 2)
	assert.InDelta(t, 3.0, tr.Position(), 1e-9)
	b.Render(8000 * 3)
	assert.InDelta(t, 1.0, tr.Position(), 1e-9)
}

func TestVibratoOptionReachesMelody(t *testing.T) {
	f := &countingFactory{}
	tr := NewTransport(WithBackendFactory(f.New), WithVibrato(true), WithLogger(&logger.Recorder{}),
		withTimerFactory(scheduler.Idle), WithLookAhead(50*time.Millisecond), WithPollInterval(10*time.Millisecond))
	defer tr.Close()
	tr.Play(demoDoc())
	require.NotNil(t, tr.renderer)
	assert.True(t, tr.renderer.Params(voice.Melody).Vibrato.Active())
	assert.Equal(t, DefaultSampleRate, f.created[0].SampleRate())
	assert.Equal(t, 50*time.Millisecond, tr.cfg.lookAhead)
	assert.Equal(t, 10*time.Millisecond, tr.cfg.pollInterval)
}

func TestReverbOptionInstallsRoom(t *testing.T) {
	quiet := func(opts ...TransportOption) float64 {
		f := &countingFactory{}
		tr := NewTransport(append([]TransportOption{WithSampleRate(8000), WithBackendFactory(f.New),
			WithLogger(&logger.Recorder{}), withTimerFactory(scheduler.Idle)}, opts...)...)
		defer tr.Close()
		doc := NewDocument()
		doc.Melody = []Note{{Pitch: "A4", StartBeat: 0, DurationBeats: 0.5}}
		tr.Play(doc)
		tr.Stop()
		out := f.created[0].Render(8000)
		var tail float64
		for i := 2 * 2400; i < len(out); i++ {
			tail += float64(out[i] * out[i])
		}
		return tail
	}
	assert.Equal(t, 0.0, quiet())
	assert.Greater(t, quiet(WithReverb(0.4)), 0.0)
}
