package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte stream
// ebiten's F32 players read from.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows one audio context per process, so every Output shares it.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("%w: audio context already initialized at %d Hz (requested %d Hz)", ErrBackendUnavailable, audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Output plays the mixer through the system audio device. It is created
// suspended: the clock stands still until Resume starts the player.
type Output struct {
	*Mixer
	mu     sync.Mutex
	player *ebitaudio.Player
	reader *StreamReader
	closed bool
}

// DefaultBufferSize bounds how far the device reads ahead of what is heard.
const DefaultBufferSize = 50 * time.Millisecond

// NewOutput opens the speaker backend. bufferSize <= 0 uses DefaultBufferSize.
func NewOutput(sampleRate int, bufferSize time.Duration) (*Output, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive", ErrBackendUnavailable)
	}
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	mixer := NewMixer(sampleRate)
	reader := NewStreamReader(mixer)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	pl.SetBufferSize(bufferSize)
	return &Output{
		Mixer:  mixer,
		player: pl,
		reader: reader,
	}, nil
}

// OutputFactory returns a Factory that opens speaker outputs.
func OutputFactory(bufferSize time.Duration) Factory {
	return func(sampleRate int) (Backend, error) {
		return NewOutput(sampleRate, bufferSize)
	}
}

func (o *Output) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if !o.player.IsPlaying() {
		o.player.Play()
	}
	return nil
}

func (o *Output) Suspended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed || !o.player.IsPlaying()
}

// Close stops the device. Voices still queued are dropped.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.Mixer.close()
	o.player.Pause()
	o.player.Close()
	return o.reader.Close()
}
