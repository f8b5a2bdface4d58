package ports

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send on a channel that has been closed.
var ErrClosed = errors.New("channel closed")

// Token identifies one subscription on a Channel or another publisher.
type Token uint64

// CloseEvent describes why a channel ended. Problem is empty for a clean
// end of stream.
type CloseEvent struct {
	Problem string
	Reason  string
}

// ChannelHandler receives a channel's deliveries. Either field may be nil.
type ChannelHandler struct {
	Message func(data []byte)
	Closed  func(CloseEvent)
}

// Channel is a raw, ordered byte stream to the engine.
//
// Inbound data is delivered to subscribers strictly in arrival order and
// never concurrently. Delivery begins with the first Subscribe. Closed is
// delivered exactly once, after the last Message.
type Channel interface {
	Send(data []byte) error
	Subscribe(handler ChannelHandler) Token
	Unsubscribe(token Token)
	// Close ends the channel. Subscribers still registered receive a
	// CloseEvent carrying problem.
	Close(problem string)
}

// Dialer opens new channels to the engine.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}
