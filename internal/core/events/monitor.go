// Package events turns the engine's event feed and a filesystem watch on
// its data directory into one debounced "something changed" signal.
package events

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/clock"
	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/core/ports"
	"github.com/melih/lighthouse-dock/internal/metrics"
)

const (
	// DefaultDebounce is the window in which change hints coalesce.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultBackoff is the delay before the event feed is reopened.
	DefaultBackoff = time.Second
)

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Events ports.EventSource
	// Watcher and WatchPath are optional. When set, changes below
	// WatchPath are treated like engine events.
	Watcher   ports.Watcher
	WatchPath string

	Clock    clock.Clock
	Debounce time.Duration
	Backoff  time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Monitor emits a refresh signal whenever the engine reports a change.
// Start and Stop are reference counted: feeds run while at least one
// caller has started the monitor.
type Monitor struct {
	opts      MonitorOptions
	logger    *zap.Logger
	policy    *RetryPolicy
	debouncer *Debouncer

	mu          sync.Mutex
	started     int
	feed        io.Closer
	generation  uint64
	watch       io.Closer
	retry       clock.Timer
	subscribers map[ports.Token]func()
	nextToken   ports.Token
}

// NewMonitor returns a stopped Monitor.
func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}

	m := &Monitor{
		opts:        opts,
		logger:      opts.Logger,
		policy:      NewRetryPolicy(opts.Backoff),
		subscribers: map[ports.Token]func(){},
	}
	m.debouncer = NewDebouncer(opts.Clock, opts.Debounce, m.emit)
	return m
}

// Subscribe registers fn to be called on every refresh signal.
func (m *Monitor) Subscribe(fn func()) ports.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextToken++
	m.subscribers[m.nextToken] = fn
	return m.nextToken
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (m *Monitor) Unsubscribe(token ports.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, token)
}

// Start opens the feeds on the first call and only counts later calls.
func (m *Monitor) Start() {
	m.mu.Lock()
	m.started++
	first := m.started == 1
	m.mu.Unlock()
	if !first {
		return
	}

	m.policy.Arm()
	if m.opts.Watcher != nil && m.opts.WatchPath != "" {
		m.openWatch()
	}
	m.connect()
}

// Stop undoes one Start. The last Stop closes the feeds and drops any
// pending retry or refresh.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.started--
	if m.started > 0 {
		m.mu.Unlock()
		return
	}
	m.started = 0
	m.generation++
	feed, watch, retry := m.feed, m.watch, m.retry
	m.feed, m.watch, m.retry = nil, nil, nil
	m.mu.Unlock()

	m.policy.Disarm()
	m.debouncer.Stop()
	if retry != nil {
		retry.Stop()
	}
	if feed != nil {
		feed.Close()
	}
	if watch != nil {
		watch.Close()
	}
}

// Started returns the current reference count.
func (m *Monitor) Started() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Monitor) openWatch() {
	watch, err := m.opts.Watcher.Watch(m.opts.WatchPath, m.onHint, func(err error) {
		m.logger.Warn("monitor for engine directory failed",
			zap.String("path", m.opts.WatchPath), zap.Error(err))
	})
	if err != nil {
		m.logger.Warn("cannot watch engine directory",
			zap.String("path", m.opts.WatchPath), zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started == 0 {
		watch.Close()
		return
	}
	m.watch = watch
}

func (m *Monitor) connect() {
	m.mu.Lock()
	if m.started == 0 {
		m.mu.Unlock()
		return
	}
	m.generation++
	generation := m.generation
	m.mu.Unlock()

	feed, err := m.opts.Events.OpenEvents(ports.EventHandler{
		Event:  func(event domain.Event) { m.onEvent(generation, event) },
		Closed: func(err error) { m.onFeedClosed(generation, err) },
	})
	if err != nil {
		m.onFeedClosed(generation, err)
		return
	}

	m.mu.Lock()
	current := generation == m.generation && m.started > 0
	if current {
		m.feed = feed
	}
	m.mu.Unlock()
	if !current {
		feed.Close()
	}
}

func (m *Monitor) onEvent(generation uint64, event domain.Event) {
	m.mu.Lock()
	current := generation == m.generation
	m.mu.Unlock()
	if !current {
		return
	}

	m.policy.MarkAlive()
	m.opts.Metrics.EngineEvents.Inc()
	m.logger.Debug("engine event",
		zap.String("type", event.Type),
		zap.String("action", event.Action),
		zap.String("actor", event.ActorID))
	m.debouncer.Trigger()
}

func (m *Monitor) onHint() {
	m.mu.Lock()
	running := m.started > 0
	m.mu.Unlock()
	if !running {
		return
	}
	m.opts.Metrics.FilesystemHints.Inc()
	m.debouncer.Trigger()
}

func (m *Monitor) onFeedClosed(generation uint64, err error) {
	m.mu.Lock()
	if generation != m.generation || m.started == 0 {
		m.mu.Unlock()
		return
	}
	m.generation++
	closed := m.generation
	m.feed = nil
	m.mu.Unlock()

	if err != nil {
		m.logger.Info("engine event feed closed", zap.Error(err))
	} else {
		m.logger.Info("engine event feed closed")
	}

	// The timer is armed without the lock held: reconnect takes it.
	timer := m.opts.Clock.AfterFunc(m.policy.Backoff, m.reconnect)
	m.mu.Lock()
	if closed == m.generation && m.started > 0 {
		m.retry = timer
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	timer.Stop()
}

func (m *Monitor) reconnect() {
	m.mu.Lock()
	m.retry = nil
	running := m.started > 0
	m.mu.Unlock()
	if !running {
		return
	}

	if !m.policy.Attempt() {
		m.logger.Warn("engine event feed not reconnected: no events since the last attempt")
		return
	}
	m.opts.Metrics.FeedReconnects.Inc()
	m.connect()
}

func (m *Monitor) emit() {
	m.mu.Lock()
	if m.started == 0 {
		m.mu.Unlock()
		return
	}
	subscribers := make([]func(), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subscribers = append(subscribers, fn)
	}
	m.mu.Unlock()

	m.opts.Metrics.Refreshes.Inc()
	for _, fn := range subscribers {
		fn()
	}
}
