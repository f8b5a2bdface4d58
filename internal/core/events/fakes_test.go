package events

import (
	"errors"
	"io"
	"sync"

	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/core/ports"
)

type fakeFeed struct {
	source  *fakeEvents
	handler ports.EventHandler
	closed  bool
}

func (f *fakeFeed) Close() error {
	f.source.mu.Lock()
	defer f.source.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFeed) emit(action string) {
	f.handler.Event(domain.Event{Type: "container", Action: action, ActorID: "abc"})
}

func (f *fakeFeed) fail() {
	f.handler.Closed(errors.New("connection reset"))
}

func (f *fakeFeed) isClosed() bool {
	f.source.mu.Lock()
	defer f.source.mu.Unlock()
	return f.closed
}

type fakeEvents struct {
	mu    sync.Mutex
	feeds []*fakeFeed
	err   error
}

func (e *fakeEvents) OpenEvents(handler ports.EventHandler) (io.Closer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	feed := &fakeFeed{source: e, handler: handler}
	e.feeds = append(e.feeds, feed)
	return feed, nil
}

func (e *fakeEvents) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.feeds)
}

func (e *fakeEvents) last() *fakeFeed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeds[len(e.feeds)-1]
}

type fakeWatch struct {
	path    string
	changed func()
	failed  func(error)
	closed  bool
}

func (w *fakeWatch) Close() error {
	w.closed = true
	return nil
}

type fakeWatcher struct {
	watches []*fakeWatch
	err     error
}

func (w *fakeWatcher) Watch(path string, changed func(), failed func(error)) (io.Closer, error) {
	if w.err != nil {
		return nil, w.err
	}
	watch := &fakeWatch{path: path, changed: changed, failed: failed}
	w.watches = append(w.watches, watch)
	return watch, nil
}
