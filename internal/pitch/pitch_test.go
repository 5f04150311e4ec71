package pitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyKnownPitches(t *testing.T) {
	tests := []struct {
		name string
		want float64
	}{
		{"A4", 440.00},
		{"C4", 261.63},
		{"C3", 130.81},
		{"F#3", 185.00},
		{"E4", 329.63},
		{"B5", 987.77},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Frequency(tt.name)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestFrequencyCoversThreeOctavesOfSharps(t *testing.T) {
	for octave := LowOctave; octave <= HighOctave; octave++ {
		for _, pc := range PitchClasses() {
			name := pc + string(rune('0'+octave))
			_, ok := Frequency(name)
			assert.True(t, ok, "missing %s", name)
		}
	}
	assert.Equal(t, 36, Size)
}

func TestFrequencyRejectsUnsupportedSpellings(t *testing.T) {
	for _, name := range []string{"Db4", "Bb3", "C", "c4", "C6", "B2", "", "H4"} {
		_, ok := Frequency(name)
		assert.False(t, ok, "expected %q to be missing", name)
	}
}

func TestIndexAndNameAtRoundTrip(t *testing.T) {
	for i := 0; i < Size; i++ {
		name, ok := NameAt(i)
		require.True(t, ok)
		idx, ok := Index(name)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
	_, ok := NameAt(Size)
	assert.False(t, ok)
	_, ok = NameAt(-1)
	assert.False(t, ok)
}

func TestSemitoneRatio(t *testing.T) {
	for i := 1; i < Size; i++ {
		lo, _ := FrequencyAt(i - 1)
		hi, _ := FrequencyAt(i)
		if math.Abs(hi/lo-math.Pow(2, 1.0/12)) > 1e-9 {
			t.Fatalf("step %d: ratio %v", i, hi/lo)
		}
	}
}
