package exam

import (
	"fmt"
	"sync"
	"time"
)

// LowTimeThreshold is the remaining time, in seconds, at which the clock
// switches to its warning style.
const LowTimeThreshold = 300

// FormatClock renders seconds as zero-padded HH:MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// IsLowTime reports whether the warning style applies.
func IsLowTime(seconds int) bool { return seconds <= LowTimeThreshold }

// Clock is a point-in-time view of the timer.
type Clock struct {
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
	LowTime   bool   `json:"low_time"`
	Running   bool   `json:"running"`
}

// Ticker abstracts time.Ticker so tests can drive the timer by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker is the TickerFunc backed by time.NewTicker.
func NewStdTicker(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }

// Timer counts whole seconds down to zero. At most one countdown is active:
// Start cancels any previous one. OnExpire fires exactly once per countdown
// that reaches zero, never after Stop.
type Timer struct {
	mu        sync.Mutex
	remaining int
	running   bool
	stop      chan struct{}
	newTicker TickerFunc

	onTick   func(remaining int)
	onExpire func()
}

// NewTimer builds a stopped timer. Callbacks run on the ticking goroutine
// without the timer's lock held.
func NewTimer(newTicker TickerFunc, onTick func(int), onExpire func()) *Timer {
	if newTicker == nil {
		newTicker = NewStdTicker
	}
	return &Timer{newTicker: newTicker, onTick: onTick, onExpire: onExpire}
}

// Start begins counting down from seconds.
func (t *Timer) Start(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	if seconds < 0 {
		seconds = 0
	}
	t.remaining = seconds
	if seconds == 0 {
		return
	}

	t.running = true
	stop := make(chan struct{})
	t.stop = stop
	go t.run(t.newTicker(time.Second), stop)
}

// Stop halts the countdown, keeping the remaining time.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.cancelLocked()
	t.mu.Unlock()
}

func (t *Timer) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.running = false
}

// Remaining is the number of seconds left.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Clock returns a display snapshot.
func (t *Timer) Clock() Clock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Clock{
		Remaining: t.remaining,
		Display:   FormatClock(t.remaining),
		LowTime:   IsLowTime(t.remaining),
		Running:   t.running,
	}
}

// Tick advances the countdown by one second. It is a no-op on a stopped
// timer.
func (t *Timer) Tick() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	remaining, expired := t.tickLocked()
	t.mu.Unlock()
	t.notify(remaining, expired)
}

func (t *Timer) run(tk Ticker, stop chan struct{}) {
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C():
			t.mu.Lock()
			if t.stop != stop {
				t.mu.Unlock()
				return
			}
			remaining, expired := t.tickLocked()
			t.mu.Unlock()

			t.notify(remaining, expired)
			if expired {
				return
			}
		}
	}
}

func (t *Timer) tickLocked() (int, bool) {
	t.remaining--
	if t.remaining > 0 {
		return t.remaining, false
	}
	t.remaining = 0
	t.cancelLocked()
	return 0, true
}

func (t *Timer) notify(remaining int, expired bool) {
	if t.onTick != nil {
		t.onTick(remaining)
	}
	if expired && t.onExpire != nil {
		t.onExpire()
	}
}
