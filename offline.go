package sketchplay

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cbegin/sketchplay/internal/audio"
	"github.com/cbegin/sketchplay/internal/scheduler"
)

// OfflineFactory returns a BackendFactory for backends whose clock advances
// only as they are rendered.
func OfflineFactory() BackendFactory {
	return audio.OfflineFactory(nil)
}

// RenderOffline plays doc through the same scheduler and mixer the speaker
// uses, but with a clock driven by rendering, and returns seconds of
// interleaved stereo samples. The scheduler wakes once per poll interval of
// rendered audio.
func RenderOffline(doc Document, sampleRate int, seconds float64, opts ...TransportOption) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	var created []*audio.Offline
	all := append([]TransportOption{}, opts...)
	all = append(all,
		WithSampleRate(sampleRate),
		WithBackendFactory(audio.OfflineFactory(&created)),
		withTimerFactory(scheduler.Idle),
	)
	t := NewTransport(all...)
	defer t.Close()

	t.Play(doc)
	if len(created) != 1 || !t.Playing() {
		return nil, fmt.Errorf("%w: offline playback did not start", audio.ErrBackendUnavailable)
	}
	backend := created[0]

	total := int(float64(sampleRate) * seconds)
	chunk := int(t.cfg.pollInterval.Seconds() * float64(sampleRate))
	if chunk < 1 {
		chunk = 1
	}
	out := make([]float32, 0, total*2)
	for rendered := 0; rendered < total; {
		n := min(chunk, total-rendered)
		out = append(out, backend.Render(n)...)
		rendered += n
		t.sched.Tick()
	}
	return out, nil
}

// wavHeader is the 44-byte RIFF header of a float32 stereo WAV file.
type wavHeader struct {
	Riff          [4]byte
	ChunkSize     uint32
	Wave          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

const wavFormatFloat = 3

// WriteWAV writes interleaved stereo samples, as returned by RenderOffline,
// to w as a 32-bit float WAV file.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	if len(samples)%2 != 0 {
		return fmt.Errorf("wav: %d samples is not a whole number of stereo frames", len(samples))
	}
	dataSize := uint32(len(samples) * 4)
	h := wavHeader{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		Format:        wavFormatFloat,
		Channels:      2,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2 * 4),
		BlockAlign:    2 * 4,
		BitsPerSample: 32,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("wav header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("wav data: %w", err)
	}
	return bw.Flush()
}
