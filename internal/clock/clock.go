// Package clock abstracts the timers used for debouncing and reconnect
// backoff. Production code injects Real(); tests inject Fake() and move
// time forward explicitly with Advance.
package clock

import "time"

// Clock is the subset of the time package the monitor needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned Timer
	// can cancel the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the Timer from firing. Returns true if the call
	// stops the timer, false if it already fired or was stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
