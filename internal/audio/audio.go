// Package audio owns the render side of playback: a sample-accurate clock,
// the mixer that turns scheduled voices into frames, and the backends that
// pull those frames (the ebiten speaker output and an offline renderer).
//
// Control code never renders directly. It stamps each voice with an absolute
// start frame and hands it over with Schedule; the render thread picks it up
// when its frame comes round.
package audio

import "errors"

var (
	ErrClosed             = errors.New("audio backend closed")
	ErrBackendUnavailable = errors.New("audio backend unavailable")
)

// Clock reports the audio clock in seconds. It starts at 0 and advances only
// as frames are rendered.
type Clock interface {
	CurrentTime() float64
}

// Voice is one scheduled sound. Frames returns the half-open frame range in
// which it is audible. Mix adds its output for the frames starting at frame
// into interleaved stereo dst; it is only ever called from the render thread,
// with increasing frame values.
type Voice interface {
	Frames() (start, end int64)
	Mix(dst []float32, frame int64)
}

// Backend is a running audio device (or a stand-in for one).
type Backend interface {
	Clock
	SampleRate() int
	Schedule(v Voice) error
	// Resume starts the clock. Backends are created suspended.
	Resume() error
	Suspended() bool
	Close() error
}

// Factory creates a backend for the given sample rate.
type Factory func(sampleRate int) (Backend, error)
