package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types/events"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/core/attach"
	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/core/jsonstream"
	"github.com/melih/lighthouse-dock/internal/core/ports"
)

// EventsRequest returns the request that opens the engine event feed.
func EventsRequest(apiVersion string) []byte {
	return []byte(fmt.Sprintf("GET /%s/events HTTP/1.0\r\n\r\n", apiVersion))
}

// EventSource opens the engine event feed over a raw channel. The body is
// a stream of concatenated JSON documents with no separator guarantees.
type EventSource struct {
	dialer     ports.Dialer
	apiVersion string
	logger     *zap.Logger
}

// NewEventSource returns an EventSource dialing through dialer.
func NewEventSource(dialer ports.Dialer, apiVersion string, logger *zap.Logger) *EventSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventSource{dialer: dialer, apiVersion: apiVersion, logger: logger}
}

// OpenEvents dials the engine and starts delivering events to handler.
func (s *EventSource) OpenEvents(handler ports.EventHandler) (io.Closer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultDialTimeout)
	defer cancel()

	channel, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := channel.Send(EventsRequest(s.apiVersion)); err != nil {
		channel.Close("internal-error")
		return nil, fmt.Errorf("failed to request events: %w", err)
	}

	feed := &eventFeed{channel: channel, handler: handler, logger: s.logger}
	token := channel.Subscribe(ports.ChannelHandler{
		Message: feed.message,
		Closed:  feed.closed,
	})
	feed.mu.Lock()
	feed.token = token
	feed.mu.Unlock()
	return feed, nil
}

type eventFeed struct {
	channel ports.Channel
	handler ports.EventHandler
	logger  *zap.Logger

	mu       sync.Mutex
	token    ports.Token
	header   []byte
	body     bool
	status   attach.Status
	splitter jsonstream.Splitter
	stopped  bool
}

// Close ends the feed without reporting it to the handler.
func (f *eventFeed) Close() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	token := f.token
	f.mu.Unlock()

	f.channel.Unsubscribe(token)
	f.channel.Close("")
	return nil
}

func (f *eventFeed) message(data []byte) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}

	if !f.body {
		f.header = append(f.header, data...)
		status, start, ok := attach.ScanHeaders(f.header)
		if !ok {
			f.mu.Unlock()
			return
		}
		f.body = true
		f.status = status
		data = f.header[start:]
		f.header = nil
		if !status.OK() {
			f.mu.Unlock()
			f.logger.Warn("engine refused event feed",
				zap.Int("status", status.Code), zap.String("reason", status.Reason))
			f.channel.Close("protocol-error")
			return
		}
	}

	f.splitter.Write(data)
	var decoded []domain.Event
	for {
		doc, ok := f.splitter.Next()
		if !ok {
			break
		}
		var msg events.Message
		if err := json.Unmarshal(doc, &msg); err != nil {
			f.logger.Debug("skipping undecodable event", zap.Error(err))
			continue
		}
		decoded = append(decoded, ToEvent(msg))
	}
	f.mu.Unlock()

	for _, event := range decoded {
		if f.handler.Event != nil {
			f.handler.Event(event)
		}
	}
}

func (f *eventFeed) closed(event ports.CloseEvent) {
	f.mu.Lock()
	stopped := f.stopped
	f.stopped = true
	status := f.status
	f.mu.Unlock()
	if stopped || f.handler.Closed == nil {
		return
	}

	var err error
	switch {
	case status.Code != 0 && !status.OK():
		err = fmt.Errorf("event feed refused: %d %s", status.Code, status.Reason)
	case event.Reason != "":
		err = fmt.Errorf("event feed %s: %s", event.Problem, event.Reason)
	case event.Problem != "":
		err = fmt.Errorf("event feed %s", event.Problem)
	}
	f.handler.Closed(err)
}

// ToEvent converts an engine event message.
func ToEvent(msg events.Message) domain.Event {
	event := domain.Event{
		Type:       string(msg.Type),
		Action:     string(msg.Action),
		ActorID:    msg.Actor.ID,
		Attributes: msg.Actor.Attributes,
	}
	switch {
	case msg.TimeNano != 0:
		event.Time = time.Unix(0, msg.TimeNano)
	case msg.Time != 0:
		event.Time = time.Unix(msg.Time, 0)
	}
	return event
}
