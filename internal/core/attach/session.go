package attach

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/core/ports"
	"github.com/melih/lighthouse-dock/internal/metrics"
)

// Terminal is the interactive display a Session renders into.
type Terminal interface {
	Sink
	// SetTypeable shows or hides the cursor.
	SetTypeable(yes bool)
}

// AttachRequest returns the request that opens an attach stream. It is
// sent as the very first bytes on a fresh channel.
func AttachRequest(apiVersion, containerID string) []byte {
	return []byte(fmt.Sprintf(
		"POST /%s/containers/%s/attach?logs=1&stream=1&stdin=1&stdout=1&stderr=1 HTTP/1.0\r\n"+
			"Content-Length: 0\r\n\r\n",
		apiVersion, url.PathEscape(containerID)))
}

// SessionOptions configures a Session.
type SessionOptions struct {
	ContainerID string
	APIVersion  string
	Dialer      ports.Dialer
	// TTY is the container's tty flag, if already known from its
	// configuration. Otherwise the stream is inspected.
	TTY *bool

	Terminal Terminal
	// Logs receives framed output and failures. Defaults to Terminal.
	Logs Sink

	// OnDisconnect runs after the channel has closed for any reason,
	// outside the Session lock.
	OnDisconnect func(ports.CloseEvent)

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Session is an interactive console on one container: it owns at most
// one channel at a time and decodes whatever comes back.
//
// Sinks are called while the Session holds its lock; they must not call
// back into the Session.
type Session struct {
	opts   SessionOptions
	id     string
	logger *zap.Logger

	mu         sync.Mutex
	channel    ports.Channel
	token      ports.Token
	generation uint64
	demux      *Demuxer
	connected  bool
	typeable   bool
}

// NewSession returns a Session. Nothing is dialed until Open.
func NewSession(opts SessionOptions) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	if opts.Logs == nil && opts.Terminal != nil {
		opts.Logs = opts.Terminal
	}
	id := uuid.NewString()
	return &Session{
		opts: opts,
		id:   id,
		logger: opts.Logger.With(
			zap.String("session", id),
			zap.String("container", opts.ContainerID),
		),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Open dials a channel and sends the attach request. A channel still held
// from an earlier Open is closed first.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	held := s.channel != nil
	s.mu.Unlock()
	if held {
		s.Close("disconnected")
	}

	channel, err := s.opts.Dialer.Dial(ctx)
	if err != nil {
		s.logger.Warn("attach dial failed", zap.Error(err))
		s.writeLogs(err.Error() + "\r\n")
		return fmt.Errorf("failed to open attach channel: %w", err)
	}

	request := AttachRequest(s.opts.APIVersion, s.opts.ContainerID)
	s.logger.Debug("attach request", zap.ByteString("request", request))
	if err := channel.Send(request); err != nil {
		channel.Close("internal-error")
		return fmt.Errorf("failed to send attach request: %w", err)
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.channel = channel
	s.connected = true
	s.demux = s.newDemuxer()
	s.mu.Unlock()
	s.opts.Metrics.AttachSessions.Inc()

	token := channel.Subscribe(ports.ChannelHandler{
		Message: func(data []byte) { s.onMessage(generation, data) },
		Closed:  func(event ports.CloseEvent) { s.onClosed(generation, event) },
	})

	s.mu.Lock()
	stale := s.generation != generation
	if !stale {
		s.token = token
	}
	s.mu.Unlock()
	if stale {
		channel.Unsubscribe(token)
	}
	return nil
}

// Connected reports whether the channel is open and the attach has not
// failed.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Stage returns the decoder stage of the current channel.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.demux == nil {
		return StageHeaders
	}
	return s.demux.Stage()
}

// SetTypeable enables or disables forwarding of typed input.
func (s *Session) SetTypeable(yes bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typeable = yes
	if s.demux != nil && s.demux.Stage() == StageTTY && s.opts.Terminal != nil {
		s.opts.Terminal.SetTypeable(yes)
	}
}

// Input sends typed bytes to the container unmodified. Input is dropped
// while the session is not typeable, not connected, or still waiting for
// the stream to start.
func (s *Session) Input(data []byte) error {
	s.mu.Lock()
	channel := s.channel
	ready := s.connected && s.typeable && s.demux != nil &&
		(s.demux.Stage() == StageTTY || s.demux.Stage() == StageFramed)
	s.mu.Unlock()

	if !ready || channel == nil {
		return nil
	}
	return channel.Send(data)
}

// Close closes the current channel, if any, and renders problem the way
// a dropped connection is rendered.
func (s *Session) Close(problem string) {
	s.mu.Lock()
	channel, token := s.channel, s.token
	if channel == nil {
		s.mu.Unlock()
		return
	}
	s.disconnectLocked(ports.CloseEvent{Problem: problem})
	s.mu.Unlock()

	channel.Unsubscribe(token)
	channel.Close(problem)
	s.notifyDisconnect(ports.CloseEvent{Problem: problem})
}

// Reconnect tears down the current channel and redoes the attach from
// scratch. Partially decoded data from the old channel is discarded.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.Open(ctx)
}

func (s *Session) newDemuxer() *Demuxer {
	var tty *bool
	if s.opts.TTY != nil {
		known := *s.opts.TTY
		tty = &known
	}
	return NewDemuxer(DemuxerOptions{
		TTY:      tty,
		Terminal: s.opts.Terminal,
		Logs:     s.opts.Logs,
		OnStage:  s.onStage,
		OnFrame: func(frame Frame) {
			s.opts.Metrics.FramesDecoded.WithLabelValues(StreamName(frame.Stream)).Inc()
		},
	})
}

// onStage runs inside Demuxer.Process, so s.mu is already held.
func (s *Session) onStage(stage Stage, status Status) {
	switch stage {
	case StageDetect:
		s.logger.Debug("attach headers", zap.Int("status", status.Code))
	case StageTTY:
		s.logger.Debug("attach mode", zap.Bool("tty", true))
		if s.opts.Terminal != nil {
			s.opts.Terminal.SetTypeable(s.typeable)
		}
	case StageFramed:
		s.logger.Debug("attach mode", zap.Bool("tty", false))
	case StageFailed:
		s.logger.Warn("attach refused",
			zap.Int("status", status.Code),
			zap.String("reason", status.Reason))
		s.connected = false
	}
}

func (s *Session) onMessage(generation uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || s.demux == nil {
		return
	}
	s.demux.Write(data)
}

func (s *Session) onClosed(generation uint64, event ports.CloseEvent) {
	s.mu.Lock()
	if generation != s.generation || s.channel == nil {
		s.mu.Unlock()
		return
	}
	channel, token := s.channel, s.token
	s.logger.Debug("attach channel closed",
		zap.String("problem", event.Problem),
		zap.String("reason", event.Reason))
	s.disconnectLocked(event)
	s.mu.Unlock()

	channel.Unsubscribe(token)
	s.notifyDisconnect(event)
}

func (s *Session) notifyDisconnect(event ports.CloseEvent) {
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect(event)
	}
}

// disconnectLocked renders the close and forgets the channel. Later
// deliveries from it are ignored because the generation moves on.
func (s *Session) disconnectLocked(event ports.CloseEvent) {
	s.generation++
	s.channel = nil
	s.token = 0
	s.connected = false
	s.opts.Metrics.AttachSessions.Dec()

	demux := s.demux
	if demux == nil {
		return
	}
	demux.Flush()

	if demux.Stage() == StageTTY && s.opts.Terminal != nil {
		problem := event.Problem
		if problem == "" {
			problem = "disconnected"
		}
		s.opts.Terminal.WriteText("\x1b[31m" + problem + "\x1b[m\r\n")
		s.opts.Terminal.SetTypeable(false)
		return
	}

	message := event.Reason
	if message == "" {
		message = event.Problem
	}
	if message == "" {
		message = "disconnected"
	}
	if s.opts.Logs != nil {
		s.opts.Logs.WriteText(message)
	}
}

func (s *Session) writeLogs(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.Logs != nil {
		s.opts.Logs.WriteText(text)
	}
}
