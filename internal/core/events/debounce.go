package events

import (
	"sync"
	"time"

	"github.com/melih/lighthouse-dock/internal/clock"
)

// Debouncer coalesces bursts of triggers into one call. The first
// Trigger arms a timer for the window; triggers while it is armed are
// absorbed; fire runs once when it expires.
type Debouncer struct {
	clock  clock.Clock
	window time.Duration
	fire   func()

	mu    sync.Mutex
	timer clock.Timer
}

// NewDebouncer returns a Debouncer calling fire at most once per window.
func NewDebouncer(c clock.Clock, window time.Duration, fire func()) *Debouncer {
	return &Debouncer{clock: c, window: window, fire: fire}
}

// Trigger schedules fire unless it is already scheduled.
func (d *Debouncer) Trigger() {
	if d.window <= 0 {
		d.fire()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		return
	}
	d.timer = d.clock.AfterFunc(d.window, d.expire)
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops a scheduled call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) expire() {
	d.mu.Lock()
	d.timer = nil
	d.mu.Unlock()
	d.fire()
}
