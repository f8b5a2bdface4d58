package socket

import (
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/core/ports"
)

const readBufferSize = 32 * 1024

// Problem codes reported when the engine side ends a channel.
const (
	ProblemDisconnected = "disconnected"
)

// Channel is a ports.Channel over a net.Conn. One goroutine reads the
// connection and delivers to subscribers in order; it starts with the
// first Subscribe.
type Channel struct {
	conn   net.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[ports.Token]ports.ChannelHandler
	order    []ports.Token
	next     ports.Token
	reading  bool
	closing  bool
	finished bool
	problem  string
}

// NewChannel wraps conn. The Channel owns conn from now on.
func NewChannel(conn net.Conn, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		conn:     conn,
		logger:   logger,
		handlers: map[ports.Token]ports.ChannelHandler{},
	}
}

// Send writes data to the connection.
func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	done := c.closing || c.finished
	c.mu.Unlock()
	if done {
		return ports.ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	return nil
}

// Subscribe registers handler and starts reading on first use.
func (c *Channel) Subscribe(handler ports.ChannelHandler) ports.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	token := c.next
	c.handlers[token] = handler
	c.order = append(c.order, token)
	if !c.reading && !c.finished {
		c.reading = true
		go c.readLoop()
	}
	return token
}

// Unsubscribe removes a handler. Unknown tokens are ignored.
func (c *Channel) Unsubscribe(token ports.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, token)
}

// Close shuts the connection. Subscribers get a CloseEvent with problem
// once the reader has drained.
func (c *Channel) Close(problem string) {
	c.mu.Lock()
	if c.closing || c.finished {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.problem = problem
	reading := c.reading
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("engine channel close", zap.Error(err))
	}
	if !reading {
		c.finish(ports.CloseEvent{Problem: problem})
	}
}

func (c *Channel) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			for _, handler := range c.snapshot() {
				if handler.Message != nil {
					handler.Message(data)
				}
			}
		}
		if err != nil {
			c.finish(c.closeEvent(err))
			return
		}
	}
}

func (c *Channel) closeEvent(err error) ports.CloseEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return ports.CloseEvent{Problem: c.problem}
	}
	if errors.Is(err, io.EOF) {
		return ports.CloseEvent{}
	}
	return ports.CloseEvent{Problem: ProblemDisconnected, Reason: err.Error()}
}

func (c *Channel) finish(event ports.CloseEvent) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	closing := c.closing
	handlers := c.snapshotLocked()
	c.mu.Unlock()

	if !closing {
		c.conn.Close()
	}
	for _, handler := range handlers {
		if handler.Closed != nil {
			handler.Closed(event)
		}
	}
}

func (c *Channel) snapshot() []ports.ChannelHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
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
