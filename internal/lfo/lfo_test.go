package lfo

import (
	"math"
	"testing"
)

func TestLFOTriangleBasicShape(t *testing.T) {
	l := LFO{Depth: 1, RateHz: 1, Waveform: WaveTriangle}

	if v := l.At(0); math.Abs(v) > 1e-9 {
		t.Errorf("triangle at phase 0: got %f, want 0", v)
	}
	if v := l.At(0.25); math.Abs(v-1) > 1e-9 {
		t.Errorf("triangle at phase 0.25: got %f, want 1", v)
	}
	if v := l.At(0.75); math.Abs(v+1) > 1e-9 {
		t.Errorf("triangle at phase 0.75: got %f, want -1", v)
	}
}

func TestLFOSquareShape(t *testing.T) {
	l := LFO{Depth: 2, RateHz: 1, Waveform: WaveSquare}
	if v := l.At(0.1); v != 2 {
		t.Errorf("square first half: got %f, want 2", v)
	}
	if v := l.At(0.6); v != -2 {
		t.Errorf("square second half: got %f, want -2", v)
	}
}

func TestLFOSineIsPeriodic(t *testing.T) {
	l := LFO{Depth: 0.5, RateHz: 5}
	for _, at := range []float64{0.013, 0.1, 0.37} {
		a := l.At(at)
		b := l.At(at + 1.0/l.RateHz)
		if math.Abs(a-b) > 1e-9 {
			t.Fatalf("At(%v)=%v but one period later %v", at, a, b)
		}
		if math.Abs(a) > l.Depth+1e-12 {
			t.Fatalf("At(%v)=%v exceeds depth", at, a)
		}
	}
}

func TestLFODelayAndFade(t *testing.T) {
	l := LFO{Depth: 1, RateHz: 1, Waveform: WaveSquare, Delay: 0.2, Fade: 0.4}
	if v := l.At(0.1); v != 0 {
		t.Errorf("inside delay: got %f, want 0", v)
	}
	if v := l.At(0.3); math.Abs(v-0.25) > 1e-9 {
		t.Errorf("quarter into fade: got %f, want 0.25", v)
	}
	if v := l.At(0.8); math.Abs(v-(-1)) > 1e-9 {
		t.Errorf("after fade: got %f, want -1", v)
	}
}

func TestLFOInactive(t *testing.T) {
	if (LFO{}).Active() {
		t.Error("zero LFO should not be active")
	}
	if v := (LFO{Depth: 1}).At(0.3); v != 0 {
		t.Errorf("zero rate should return 0, got %f", v)
	}
	if v := (LFO{RateHz: 5}).At(0.3); v != 0 {
		t.Errorf("zero depth should return 0, got %f", v)
	}
}

func TestSemitoneRatio(t *testing.T) {
	if r := SemitoneRatio(12); math.Abs(r-2) > 1e-12 {
		t.Errorf("octave ratio: got %f", r)
	}
	if r := SemitoneRatio(0); r != 1 {
		t.Errorf("unison ratio: got %f", r)
	}
}
