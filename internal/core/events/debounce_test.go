package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/melih/lighthouse-dock/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDebouncerCoalescesBurst(t *testing.T) {
	c := clock.Fake(epoch)
	fired := 0
	d := NewDebouncer(c, 300*time.Millisecond, func() { fired++ })

	for i := 0; i < 10; i++ {
		d.Trigger()
		c.Advance(20 * time.Millisecond)
	}
	assert.Equal(t, 0, fired)
	assert.True(t, d.Pending())

	c.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.False(t, d.Pending())

	d.Trigger()
	c.Advance(300 * time.Millisecond)
	assert.Equal(t, 2, fired)
}

func TestDebouncerStop(t *testing.T) {
	c := clock.Fake(epoch)
	fired := 0
	d := NewDebouncer(c, time.Second, func() { fired++ })

	d.Trigger()
	d.Stop()
	c.Advance(2 * time.Second)
	assert.Equal(t, 0, fired)
}

func TestDebouncerZeroWindowFiresImmediately(t *testing.T) {
	fired := 0
	d := NewDebouncer(clock.Fake(epoch), 0, func() { fired++ })
	d.Trigger()
	d.Trigger()
	assert.Equal(t, 2, fired)
}

func TestRetryPolicy(t *testing.T) {
	p := NewRetryPolicy(time.Second)
	assert.False(t, p.Attempt(), "disarmed until started")

	p.Arm()
	assert.True(t, p.Attempt())
	assert.False(t, p.Attempt(), "a feed that delivered nothing is not retried again")

	p.MarkAlive()
	assert.True(t, p.Attempt())

	p.MarkAlive()
	p.Disarm()
	assert.False(t, p.Attempt())
}
