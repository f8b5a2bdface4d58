// Package fswatch reports changes below the engine's data directory. The
// engine rewrites container state files there, so a change is a cheap
// hint that the container list is worth fetching again.
package fswatch

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Subdirectories watched in addition to the root when they exist.
var engineSubdirs = []string{"containers"}

// Watcher implements ports.Watcher on fsnotify.
type Watcher struct {
	logger *zap.Logger
}

// New returns a Watcher.
func New(logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{logger: logger}
}

// Watch starts watching path and the engine subdirectories below it.
// changed runs on every filesystem event and failed on watcher errors,
// both from the watch goroutine. Close stops the watch.
func (w *Watcher) Watch(path string, changed func(), failed func(error)) (io.Closer, error) {
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := notify.Add(path); err != nil {
		notify.Close()
		return nil, err
	}
	for _, sub := range engineSubdirs {
		dir := filepath.Join(path, sub)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := notify.Add(dir); err != nil {
				w.logger.Debug("cannot watch engine subdirectory",
					zap.String("path", dir), zap.Error(err))
			}
		}
	}

	watch := &watch{notify: notify, done: make(chan struct{})}
	go watch.loop(w.logger, changed, failed)
	return watch, nil
}

type watch struct {
	notify *fsnotify.Watcher
	done   chan struct{}
	once   sync.Once
}

func (w *watch) loop(logger *zap.Logger, changed func(), failed func(error)) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.notify.Events:
			if !ok {
				return
			}
			logger.Debug("engine directory changed",
				zap.String("name", event.Name), zap.Stringer("op", event.Op))
			if changed != nil {
				changed()
			}
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			if failed != nil {
				failed(err)
			}
		}
	}
}

// Close stops the watch and waits for the watch goroutine to exit.
func (w *watch) Close() error {
	var err error
	w.once.Do(func() {
		err = w.notify.Close()
		<-w.done
	})
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
