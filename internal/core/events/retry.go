package events

import (
	"sync"
	"time"
)

// RetryPolicy decides whether a dropped feed is reconnected. The delay is
// fixed. A reconnect is only attempted if the feed proved alive since the
// previous attempt, so a feed that never connects is not hammered.
type RetryPolicy struct {
	Backoff time.Duration

	mu    sync.Mutex
	alive bool
}

// NewRetryPolicy returns a disarmed policy with the given delay.
func NewRetryPolicy(backoff time.Duration) *RetryPolicy {
	return &RetryPolicy{Backoff: backoff}
}

// Arm allows the next attempt. Called when monitoring starts.
func (p *RetryPolicy) Arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = true
}

// Disarm refuses attempts until the feed is armed or marked alive again.
func (p *RetryPolicy) Disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

// MarkAlive records that the feed delivered something.
func (p *RetryPolicy) MarkAlive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = true
}

// Attempt reports whether to reconnect now, and if so consumes the alive
// mark: the new connection has to deliver before another attempt.
func (p *RetryPolicy) Attempt() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return false
	}
	p.alive = false
	return true
}
