// Package spectrum measures rendered audio: magnitude spectrum, spectral
// centroid and the dominant partial. The CLI uses it for -analyze and the
// voice tests use it to check timbre.
package spectrum

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/ktye/fft"
)

var ErrSize = errors.New("spectrum: size must be a power of two >= 2")

// Spectrum holds magnitudes for bins 0..Size/2.
type Spectrum struct {
	SampleRate int
	Size       int
	Mag        []float64
}

// Analyze windows the first size samples (zero padded when shorter) with a
// Hann window and returns their magnitude spectrum.
func Analyze(samples []float64, sampleRate, size int) (Spectrum, error) {
	if size < 2 || size&(size-1) != 0 {
		return Spectrum{}, ErrSize
	}
	f, err := fft.New(size)
	if err != nil {
		return Spectrum{}, err
	}
	buf := make([]complex128, size)
	for i := 0; i < size && i < len(samples); i++ {
		w := (1 - math.Cos(2*math.Pi*float64(i)/float64(size))) / 2
		buf[i] = complex(samples[i]*w, 0)
	}
	buf = f.Transform(buf)
	mag := make([]float64, size/2+1)
	for i := range mag {
		mag[i] = cmplx.Abs(buf[i])
	}
	return Spectrum{SampleRate: sampleRate, Size: size, Mag: mag}, nil
}

// BinHz returns the centre frequency of bin i.
func (s Spectrum) BinHz(i int) float64 {
	return float64(i) * float64(s.SampleRate) / float64(s.Size)
}

// Centroid returns the magnitude-weighted mean frequency, ignoring DC. A
// silent spectrum has centroid 0.
func (s Spectrum) Centroid() float64 {
	var num, den float64
	for i := 1; i < len(s.Mag); i++ {
		num += s.BinHz(i) * s.Mag[i]
		den += s.Mag[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Peak returns the frequency and magnitude of the strongest non-DC bin.
func (s Spectrum) Peak() (hz, mag float64) {
	best := 0
	for i := 1; i < len(s.Mag); i++ {
		if s.Mag[i] > mag {
			best, mag = i, s.Mag[i]
		}
	}
	return s.BinHz(best), mag
}

// PeakShare returns the fraction of spectral energy within two bins of the
// peak. A pure sine scores close to 1; harmonically rich tones score lower.
func (s Spectrum) PeakShare() float64 {
	best := 0
	var peak float64
	for i := 1; i < len(s.Mag); i++ {
		if s.Mag[i] > peak {
			best, peak = i, s.Mag[i]
		}
	}
	var near, total float64
	for i := 1; i < len(s.Mag); i++ {
		e := s.Mag[i] * s.Mag[i]
		total += e
		if i >= best-2 && i <= best+2 {
			near += e
		}
	}
	if total == 0 {
		return 0
	}
	return near / total
}

// Mono averages interleaved stereo frames into one channel.
func Mono(interleaved []float32) []float64 {
	out := make([]float64, len(interleaved)/2)
	for i := range out {
		out[i] = (float64(interleaved[i*2]) + float64(interleaved[i*2+1])) / 2
	}
	return out
}

// RMS returns the root mean square of samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
