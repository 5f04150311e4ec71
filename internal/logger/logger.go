package logger

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger is the logging surface the playback packages accept.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
}

var debugEnabled atomic.Bool

// SetDebug turns printing of Debug messages on or off. Breadcrumbs are
// recorded either way.
func SetDebug(enabled bool) { debugEnabled.Store(enabled) }

// Info logs an informational message with structured fields
func Info(msg string, fields Fields) {
	log.Printf("[INFO] %s %s", msg, formatFields(fields))
	breadcrumb("info", sentry.LevelInfo, msg, fields)
}

// Warn logs a warning message with structured fields
func Warn(msg string, fields Fields) {
	log.Printf("[WARN] %s %s", msg, formatFields(fields))
	breadcrumb("warning", sentry.LevelWarning, msg, fields)
}

// Debug logs a debug message with structured fields
func Debug(msg string, fields Fields) {
	if debugEnabled.Load() {
		log.Printf("[DEBUG] %s %s", msg, formatFields(fields))
	}
	breadcrumb("debug", sentry.LevelDebug, msg, fields)
}

// Error logs an error message with structured fields and sends to Sentry
func Error(msg string, err error, fields Fields) {
	log.Printf("[ERROR] %s: %v %s", msg, err, formatFields(fields))

	hub := sentry.CurrentHub()
	if hub.Client() == nil || err == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range fields {
			scope.SetContext(key, map[string]interface{}{
				"value": value,
			})
		}
		if session, ok := fields["session"].(string); ok {
			scope.SetTag("session", session)
		}
		scope.SetTag("message", msg)
		hub.CaptureException(err)
	})
}

func breadcrumb(kind string, level sentry.Level, msg string, fields Fields) {
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		sentry.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     kind,
			Category: "log",
			Message:  msg,
			Data:     convertFieldsToMap(fields),
			Level:    level,
		})
	}
}

// Init configures the Sentry client. An empty dsn leaves Sentry disabled and
// returns a no-op flush.
func Init(dsn, release string, debug bool) (flush func(), err error) {
	SetDebug(debug)
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: release,
		Debug:   debug,
	}); err != nil {
		return func() {}, fmt.Errorf("init sentry: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

type std struct{}

// Default returns a Logger backed by the package-level functions.
func Default() Logger { return std{} }

func (std) Debug(msg string, fields Fields)            { Debug(msg, fields) }
func (std) Info(msg string, fields Fields)             { Info(msg, fields) }
func (std) Warn(msg string, fields Fields)             { Warn(msg, fields) }
func (std) Error(msg string, err error, fields Fields) { Error(msg, err, fields) }

// Entry is one message captured by a Recorder.
type Entry struct {
	Level  string
	Msg    string
	Err    error
	Fields Fields
}

// Recorder is a Logger that keeps entries in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) add(level, msg string, err error, fields Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Err: err, Fields: fields})
}

func (r *Recorder) Debug(msg string, fields Fields) { r.add("DEBUG", msg, nil, fields) }
func (r *Recorder) Info(msg string, fields Fields)  { r.add("INFO", msg, nil, fields) }
func (r *Recorder) Warn(msg string, fields Fields)  { r.add("WARN", msg, nil, fields) }
func (r *Recorder) Error(msg string, err error, fields Fields) {
	r.add("ERROR", msg, err, fields)
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Count returns how many entries were recorded at level.
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// formatFields renders fields as {k=v, ...} in key order.
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(fields[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%.3f", val)
	case time.Duration:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func convertFieldsToMap(fields Fields) map[string]interface{} {
	result := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		result[k] = v
	}
	return result
}
