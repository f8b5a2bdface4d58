// Package cache keeps a merged, eventually consistent table of the
// engine's containers, refreshed whenever the event monitor signals a
// change.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/core/ports"
	"github.com/melih/lighthouse-dock/internal/metrics"
)

// ErrClosed is returned by Refresh after Close.
var ErrClosed = errors.New("container cache closed")

// Signal is the change notification the cache follows. events.Monitor
// implements it.
type Signal interface {
	Subscribe(fn func()) ports.Token
	Unsubscribe(token ports.Token)
	Start()
	Stop()
}

// Options configures a Cache.
type Options struct {
	Reader  ports.ContainerReader
	Signal  Signal
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Cache is the container table for one engine. Readers get immutable
// snapshots; every mutation publishes a new one and notifies subscribers.
type Cache struct {
	reader  ports.ContainerReader
	signal  Signal
	logger  *zap.Logger
	metrics *metrics.Metrics

	snapshot atomic.Pointer[domain.Snapshot]

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	open        bool
	closed      bool
	signalToken ports.Token
	listSeq     uint64 // last list applied
	nextSeq     uint64
	listed      map[string]domain.Summary
	containers  domain.Snapshot
	names       map[string]string
	refreshing  bool
	again       bool
	subscribers map[ports.Token]func()
	nextToken   ports.Token
}

// New returns an empty Cache. Call Open to start following changes.
func New(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		reader:      opts.Reader,
		signal:      opts.Signal,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		ctx:         ctx,
		cancel:      cancel,
		listed:      map[string]domain.Summary{},
		containers:  domain.Snapshot{},
		names:       map[string]string{},
		subscribers: map[ports.Token]func(){},
	}
	empty := domain.Snapshot{}
	c.snapshot.Store(&empty)
	return c
}

// Open subscribes to the change signal, starts it and schedules the
// initial fetch. Calling Open twice is a no-op.
func (c *Cache) Open() {
	c.mu.Lock()
	if c.open || c.closed {
		c.mu.Unlock()
		return
	}
	c.open = true
	if c.signal != nil {
		c.signalToken = c.signal.Subscribe(c.scheduleRefresh)
	}
	c.mu.Unlock()

	if c.signal != nil {
		c.signal.Start()
	}
	c.scheduleRefresh()
}

// Close stops following the change signal, cancels fetches in flight and
// discards the table. Results of cancelled fetches are ignored. Close may
// be called from a change notification.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	wasOpen := c.open
	c.open = false
	c.cancel()
	c.mu.Unlock()

	if wasOpen && c.signal != nil {
		c.signal.Unsubscribe(c.signalToken)
		c.signal.Stop()
	}

	c.mu.Lock()
	c.listed = map[string]domain.Summary{}
	c.containers = domain.Snapshot{}
	c.names = map[string]string{}
	c.publishLocked()
	c.subscribers = map[ports.Token]func(){}
	c.mu.Unlock()
}

// Containers returns the current snapshot. It must not be modified.
func (c *Cache) Containers() domain.Snapshot {
	return *c.snapshot.Load()
}

// Lookup finds a container by id or by name.
func (c *Cache) Lookup(idOrName string) (domain.Container, bool) {
	snapshot := c.Containers()
	if container, ok := snapshot[idOrName]; ok {
		return container, true
	}

	c.mu.Lock()
	id, ok := c.names[idOrName]
	c.mu.Unlock()
	if !ok {
		return domain.Container{}, false
	}
	container, ok := snapshot[id]
	return container, ok
}

// Subscribe registers fn to be called after every change to the table.
func (c *Cache) Subscribe(fn func()) ports.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextToken++
	c.subscribers[c.nextToken] = fn
	return c.nextToken
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (c *Cache) Unsubscribe(token ports.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, token)
}

// scheduleRefresh runs a refresh in the background. Signals arriving while
// one runs collapse into a single follow-up refresh.
func (c *Cache) scheduleRefresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.refreshing {
		c.again = true
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	ctx := c.ctx
	c.mu.Unlock()

	go func() {
		for {
			if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Warn("container refresh failed", zap.Error(err))
			}

			c.mu.Lock()
			if !c.again || c.closed {
				c.refreshing = false
				c.mu.Unlock()
				return
			}
			c.again = false
			c.mu.Unlock()
		}
	}()
}

// Refresh fetches the list, removes containers missing from it and then
// fetches every listed container's detail concurrently. Each detail is
// applied as it arrives. Refresh returns once all fetches have finished.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextSeq++
	seq := c.nextSeq
	c.mu.Unlock()

	summaries, err := c.reader.ListContainers(ctx)
	if err != nil {
		c.metrics.ListFailures.Inc()
		return err
	}
	if !c.applyList(seq, summaries) {
		c.logger.Debug("dropped stale container list", zap.Uint64("seq", seq))
		return nil
	}

	var wg sync.WaitGroup
	for _, summary := range summaries {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			detail, err := c.reader.InspectContainer(ctx, id)
			if err != nil {
				c.metrics.DetailFailures.Inc()
				c.logger.Warn("container detail fetch failed",
					zap.String("id", id), zap.Error(err))
				return
			}
			c.applyDetail(id, detail)
		}(summary.ID)
	}
	wg.Wait()
	return nil
}

// applyList records the newest list and drops every container missing
// from it. Lists older than one already applied are ignored.
func (c *Cache) applyList(seq uint64, summaries []domain.Summary) bool {
	c.mu.Lock()
	if c.closed || seq < c.listSeq {
		c.mu.Unlock()
		return false
	}
	c.listSeq = seq

	listed := make(map[string]domain.Summary, len(summaries))
	for _, summary := range summaries {
		listed[summary.ID] = summary
	}
	c.listed = listed

	removed := 0
	var next domain.Snapshot
	for id := range c.containers {
		if _, ok := listed[id]; ok {
			continue
		}
		if next == nil {
			next = c.cloneLocked()
		}
		delete(next, id)
		c.forgetNamesLocked(id)
		removed++
	}
	if removed == 0 {
		c.mu.Unlock()
		return true
	}
	c.containers = next
	c.publishLocked()
	notify := c.subscribersLocked()
	c.mu.Unlock()

	c.logger.Debug("containers removed", zap.Int("count", removed))
	notifyAll(notify)
	return true
}

// applyDetail merges one detail document into the table. Details for ids
// absent from the newest list are dropped.
func (c *Cache) applyDetail(id string, detail map[string]any) {
	c.mu.Lock()
	summary, ok := c.listed[id]
	if c.closed || !ok {
		c.mu.Unlock()
		return
	}

	container := domain.NewContainer(id, summary.Fields, detail)
	if previous, ok := c.containers[id]; ok && previous.Name != container.Name {
		c.forgetNameLocked(previous.Name, id)
	}
	if container.Name != "" {
		c.names[container.Name] = id
	}

	next := c.cloneLocked()
	next[id] = container
	c.containers = next
	c.publishLocked()
	notify := c.subscribersLocked()
	c.mu.Unlock()

	notifyAll(notify)
}

func (c *Cache) cloneLocked() domain.Snapshot {
	next := make(domain.Snapshot, len(c.containers)+1)
	for id, container := range c.containers {
		next[id] = container
	}
	return next
}

func (c *Cache) forgetNamesLocked(id string) {
	for name, owner := range c.names {
		if owner == id {
			delete(c.names, name)
		}
	}
}

func (c *Cache) forgetNameLocked(name, id string) {
	if c.names[name] == id {
		delete(c.names, name)
	}
}

func (c *Cache) publishLocked() {
	snapshot := c.containers
	c.snapshot.Store(&snapshot)
	c.metrics.Containers.Set(float64(len(snapshot)))
}

func (c *Cache) subscribersLocked() []func() {
	list := make([]func(), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		list = append(list, fn)
	}
	return list
}

func notifyAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
