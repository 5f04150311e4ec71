package scheduler

import "time"

// Timer delivers wake-ups on C until Stop is called.
type Timer interface {
	C() <-chan time.Time
	Stop()
}

// TimerFactory starts a repeating timer with the given period.
type TimerFactory func(period time.Duration) Timer

type tickerTimer struct {
	t *time.Ticker
}

// NewTicker is the default TimerFactory, backed by time.Ticker.
func NewTicker(period time.Duration) Timer {
	return tickerTimer{t: time.NewTicker(period)}
}

func (t tickerTimer) C() <-chan time.Time { return t.t.C }
func (t tickerTimer) Stop()               { t.t.Stop() }

type idleTimer struct{}

// Idle is a TimerFactory whose timers never fire. The owner drives the
// scheduler by calling Tick, as offline rendering does.
func Idle(time.Duration) Timer { return idleTimer{} }

func (idleTimer) C() <-chan time.Time { return nil }
func (idleTimer) Stop()               {}
