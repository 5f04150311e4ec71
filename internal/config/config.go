package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration, loaded from environment variables.
type Config struct {
	SampleRate   int
	LookAhead    time.Duration // how far ahead of the audio clock voices are scheduled
	PollInterval time.Duration // scheduler wake period
	BufferSize   time.Duration // speaker buffer
	Vibrato      bool          // melody vibrato
	Reverb       float64       // master reverb wet mix, 0 disables
	Debug        bool
	SentryDSN    string
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) Config {
	// A missing .env is normal.
	_ = godotenv.Load(envFiles...)
	return FromEnv()
}

// FromEnv reads configuration from environment variables with defaults.
func FromEnv() Config {
	return Config{
		SampleRate:   envInt("SKETCHPLAY_SAMPLE_RATE", 48000),
		LookAhead:    envDuration("SKETCHPLAY_LOOKAHEAD", 100*time.Millisecond),
		PollInterval: envDuration("SKETCHPLAY_POLL_INTERVAL", 25*time.Millisecond),
		BufferSize:   envDuration("SKETCHPLAY_BUFFER", 50*time.Millisecond),
		Vibrato:      envBool("SKETCHPLAY_VIBRATO", false),
		Reverb:       envFloat("SKETCHPLAY_REVERB", 0),
		Debug:        envBool("SKETCHPLAY_DEBUG", false),
		SentryDSN:    envStr("SENTRY_DSN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("80ms") or bare milliseconds ("80").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
