// Package porttest provides in-memory implementations of the ports for
// tests. Deliveries happen synchronously on the caller's goroutine.
package porttest

import (
	"context"
	"errors"
	"sync"

	"github.com/melih/lighthouse-dock/internal/core/ports"
)

// Channel is an in-memory ports.Channel. Tests push inbound data with
// Deliver and end it with Fail or EOF.
type Channel struct {
	mu       sync.Mutex
	handlers map[ports.Token]ports.ChannelHandler
	order    []ports.Token
	next     ports.Token
	sent     [][]byte
	pending  [][]byte
	closed   bool
	problem  string
}

// NewChannel returns an open Channel.
func NewChannel() *Channel {
	return &Channel{handlers: map[ports.Token]ports.ChannelHandler{}}
}

// Send records data. Fails with ports.ErrClosed after Close.
func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ports.ErrClosed
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

// Subscribe registers handler and flushes anything delivered before the
// first subscription.
func (c *Channel) Subscribe(handler ports.ChannelHandler) ports.Token {
	c.mu.Lock()
	c.next++
	token := c.next
	c.handlers[token] = handler
	c.order = append(c.order, token)
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, data := range pending {
		c.Deliver(data)
	}
	return token
}

// Unsubscribe removes a handler. Unknown tokens are ignored.
func (c *Channel) Unsubscribe(token ports.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, token)
}

// Close ends the channel and notifies subscribers with problem.
func (c *Channel) Close(problem string) {
	c.finish(ports.CloseEvent{Problem: problem})
}

// Fail simulates the engine side dropping the connection.
func (c *Channel) Fail(problem string) {
	c.finish(ports.CloseEvent{Problem: problem, Reason: problem})
}

// EOF simulates a clean end of stream.
func (c *Channel) EOF() {
	c.finish(ports.CloseEvent{})
}

// Deliver pushes inbound data to every subscriber, in subscription order.
func (c *Channel) Deliver(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if len(c.handlers) == 0 {
		c.pending = append(c.pending, append([]byte(nil), data...))
		c.mu.Unlock()
		return
	}
	handlers := c.snapshotLocked()
	c.mu.Unlock()

	for _, handler := range handlers {
		if handler.Message != nil {
			handler.Message(data)
		}
	}
}

// Sent returns every payload passed to Send.
func (c *Channel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// Closed reports whether the channel has ended, and the problem it ended
// with.
func (c *Channel) Closed() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.problem
}

// Subscribers returns the number of registered handlers.
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *Channel) finish(event ports.CloseEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.problem = event.Problem
	handlers := c.snapshotLocked()
	c.mu.Unlock()

	for _, handler := range handlers {
		if handler.Closed != nil {
			handler.Closed(event)
		}
	}
}

func (c *Channel) snapshotLocked() []ports.ChannelHandler {
	handlers := make([]ports.ChannelHandler, 0, len(c.handlers))
	for _, token := range c.order {
		if handler, ok := c.handlers[token]; ok {
			handlers = append(handlers, handler)
		}
	}
	return handlers
}

// Dialer hands out fresh Channels and remembers them in dial order.
type Dialer struct {
	mu       sync.Mutex
	channels []*Channel
	err      error
}

// ErrDialRefused is returned by a Dialer after Refuse.
var ErrDialRefused = errors.New("dial refused")

// Dial returns a new Channel.
func (d *Dialer) Dial(ctx context.Context) (ports.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	channel := NewChannel()
	d.channels = append(d.channels, channel)
	return channel, nil
}

// Refuse makes subsequent dials fail with err, or succeed again if err
// is nil.
func (d *Dialer) Refuse(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Channels returns every channel dialed so far.
func (d *Dialer) Channels() []*Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Channel(nil), d.channels...)
}

// Last returns the most recently dialed channel, or nil.
func (d *Dialer) Last() *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}
