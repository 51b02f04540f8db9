package util

import (
	"sync"
	"time"
)

// Debouncer invokes a callback once its timer has gone unreset for the
// configured duration, useful for trailing-edge detection such as
// "channel has been silent for N ms". It's thread-safe.
//
// Example usage:
//
//	d := NewDebouncer(400*time.Millisecond, onSilence)
//	defer d.Stop()
//
//	for frame := range frames {
//	    if frame.Active {
//	        d.Reset() // push the silence deadline out
//	    }
//	}
type Debouncer struct {
	duration time.Duration
	fn       func()
	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
	stopped  bool
}

// NewDebouncer creates a debouncer that calls fn on its own goroutine
// after duration of inactivity. The timer is armed by the first Reset,
// not by construction.
func NewDebouncer(duration time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		duration: duration,
		fn:       fn,
	}
}

// Reset arms the timer, or pushes a pending invocation out by the
// debouncer's duration. If the debouncer has been stopped, this is a no-op.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.deadline = time.Now().Add(d.duration)
	if d.timer == nil {
		d.timer = time.AfterFunc(d.duration, d.fire)

		return
	}

	// AfterFunc timers carry no channel to drain; Stop-then-Reset is enough.
	d.timer.Stop()
	d.timer.Reset(d.duration)
}

// fire runs the callback unless the invocation is stale: a Reset or Stop
// that raced the expiring timer has already moved the deadline.
func (d *Debouncer) fire() {
	d.mu.Lock()
	stale := d.stopped || time.Now().Before(d.deadline)
	d.mu.Unlock()

	if !stale {
		d.fn()
	}
}

// Pending reports whether an invocation is currently armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return !d.stopped && time.Now().Before(d.deadline)
}

// Stop cancels any pending invocation and prevents further resets.
// It's safe to call Stop multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
