package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/sketchplay"
	"github.com/cbegin/sketchplay/internal/config"
	"github.com/cbegin/sketchplay/internal/logger"
	"github.com/cbegin/sketchplay/internal/spectrum"
)

var errFinished = errors.New("playback finished")

func main() {
	cfg := config.Load()
	var (
		sampleRate = flag.Int("sample-rate", cfg.SampleRate, "output sample rate")
		songPath   = flag.String("file", "", "path to a saved song (JSON)")
		chords     = flag.String("chords", "", `inline progression, e.g. "C:4 G7:4 Am:2 F:2"`)
		melody     = flag.String("melody", "", `inline melody, e.g. "E4@0:1 G4@1.5:0.5"`)
		bpm        = flag.Float64("bpm", 0, "tempo override (0 = keep the song's)")
		loops      = flag.Int("loops", 2, "stop after N loops (0 = until interrupted)")
		seconds    = flag.Float64("seconds", 0, "stop after N seconds (0 = no limit); length of -out/-analyze renders")
		outPath    = flag.String("out", "", "render offline to this WAV file instead of playing")
		analyze    = flag.Bool("analyze", false, "render offline and print spectral statistics")
		vibrato    = flag.Bool("vibrato", cfg.Vibrato, "melody vibrato")
		reverb     = flag.Float64("reverb", cfg.Reverb, "master reverb wet mix (0 = off)")
	)
	flag.Parse()

	flush, err := logger.Init(cfg.SentryDSN, "sketchplay", cfg.Debug)
	if err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
	}
	defer flush()

	doc, err := loadDocument(*songPath, *chords, *melody, *bpm)
	if err != nil {
		log.Fatal(err)
	}

	if *outPath != "" || *analyze {
		length := *seconds
		if length <= 0 {
			length = float64(max(*loops, 1)) * doc.TotalBeats() * doc.SecondsPerBeat()
		}
		if err := renderFile(doc, *sampleRate, length, *outPath, *analyze, *vibrato, *reverb); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := play(cfg, doc, *sampleRate, *loops, *seconds, *vibrato, *reverb); err != nil {
		log.Fatal(err)
	}
}

func play(cfg config.Config, doc sketchplay.Document, sampleRate, loops int, seconds float64, vibrato bool, reverb float64) error {
	tr := sketchplay.NewTransport(
		sketchplay.WithSampleRate(sampleRate),
		sketchplay.WithLookAhead(cfg.LookAhead),
		sketchplay.WithPollInterval(cfg.PollInterval),
		sketchplay.WithBackendFactory(sketchplay.SpeakerFactory(cfg.BufferSize)),
		sketchplay.WithVibrato(vibrato),
		sketchplay.WithReverb(reverb),
	)
	defer tr.Close()

	ch := tr.Watch()
	started := time.Now()
	tr.Play(doc)
	if !tr.Playing() {
		return errors.New("playback did not start; see log for details")
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	g, ctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-ch:
				switch ev.Kind {
				case sketchplay.EventStep:
					fmt.Printf("beat %5.2f  %s\n", ev.Beat, ev.Chord)
				case sketchplay.EventLoopCompleted:
					fmt.Printf("loop %d completed\n", ev.Loop)
					if loops > 0 && ev.Loop >= loops {
						return errFinished
					}
				}
			}
		}
	})
	if seconds > 0 {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(seconds * float64(time.Second))):
				return errFinished
			}
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errFinished) {
		return err
	}

	tr.Stop()
	// Let voices already handed to the device ring out.
	time.Sleep(cfg.LookAhead + 400*time.Millisecond)
	fmt.Printf("played for %s\n", durafmt.Parse(time.Since(started)).LimitFirstN(2))
	return nil
}

func renderFile(doc sketchplay.Document, sampleRate int, seconds float64, outPath string, analyze, vibrato bool, reverb float64) error {
	samples, err := sketchplay.RenderOffline(doc, sampleRate, seconds, sketchplay.WithVibrato(vibrato), sketchplay.WithReverb(reverb))
	if err != nil {
		return err
	}
	if outPath != "" {
		size, err := writeWAVFile(outPath, samples, sampleRate)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s (%s, %s)\n", outPath, humanize.Bytes(uint64(size)),
			durafmt.Parse(time.Duration(seconds*float64(time.Second))).LimitFirstN(2))
	}
	if analyze {
		return printAnalysis(samples, sampleRate)
	}
	return nil
}

func writeWAVFile(path string, samples []float32, sampleRate int) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := sketchplay.WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	return info.Size(), f.Close()
}

func printAnalysis(samples []float32, sampleRate int) error {
	mono := spectrum.Mono(samples)
	size := 1
	for size*2 <= len(mono) && size < 1<<16 {
		size *= 2
	}
	s, err := spectrum.Analyze(mono, sampleRate, size)
	if err != nil {
		return err
	}
	peakHz, _ := s.Peak()
	fmt.Printf("rms       %.4f\n", spectrum.RMS(mono))
	fmt.Printf("peak      %.1f Hz\n", peakHz)
	fmt.Printf("centroid  %.1f Hz\n", s.Centroid())
	fmt.Printf("fft size  %s samples\n", humanize.Comma(int64(size)))
	return nil
}
