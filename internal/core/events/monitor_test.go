package events

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-dock/internal/clock"
	"github.com/melih/lighthouse-dock/internal/metrics"
)

type monitorFixture struct {
	clock     *clock.FakeClock
	source    *fakeEvents
	watcher   *fakeWatcher
	metrics   *metrics.Metrics
	monitor   *Monitor
	refreshes int
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		clock:   clock.Fake(epoch),
		source:  &fakeEvents{},
		watcher: &fakeWatcher{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.monitor = NewMonitor(MonitorOptions{
		Events:    f.source,
		Watcher:   f.watcher,
		WatchPath: "/var/lib/docker",
		Clock:     f.clock,
		Debounce:  300 * time.Millisecond,
		Backoff:   time.Second,
		Metrics:   f.metrics,
	})
	f.monitor.Subscribe(func() { f.refreshes++ })
	return f
}

func TestMonitorBurstProducesOneRefresh(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()
	feed := f.source.last()

	for i := 0; i < 25; i++ {
		feed.emit("start")
	}
	f.clock.Advance(299 * time.Millisecond)
	assert.Equal(t, 0, f.refreshes)
	f.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, f.refreshes)

	f.clock.Advance(time.Hour)
	assert.Equal(t, 1, f.refreshes)
	assert.Equal(t, 25.0, testutil.ToFloat64(f.metrics.EngineEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Refreshes))
}

func TestMonitorFilesystemHint(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()
	require.Len(t, f.watcher.watches, 1)
	watch := f.watcher.watches[0]
	assert.Equal(t, "/var/lib/docker", watch.path)

	watch.changed()
	f.source.last().emit("die")
	watch.changed()
	f.clock.Advance(300 * time.Millisecond)

	assert.Equal(t, 1, f.refreshes, "both feeds share one debounce")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.FilesystemHints))
}

func TestMonitorReconnectsLiveFeed(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()
	first := f.source.last()

	first.emit("start")
	first.fail()
	assert.Equal(t, 1, f.source.count())

	f.clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 1, f.source.count(), "waits for the backoff")
	f.clock.Advance(time.Millisecond)
	assert.Equal(t, 2, f.source.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FeedReconnects))

	second := f.source.last()
	second.emit("stop")
	second.fail()
	f.clock.Advance(time.Second)
	assert.Equal(t, 3, f.source.count(), "each delivering connection earns another retry")
}

func TestMonitorDoesNotStormDeadFeed(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()

	f.source.last().fail()
	f.clock.Advance(time.Second)
	assert.Equal(t, 2, f.source.count(), "the first failure after start is retried")

	f.source.last().fail()
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 2, f.source.count(), "a feed that never delivered is not retried")
}

func TestMonitorOpenErrorIsRetried(t *testing.T) {
	f := newMonitorFixture(t)
	f.source.err = errors.New("connection refused")
	f.monitor.Start()
	assert.Equal(t, 0, f.source.count())

	f.source.err = nil
	f.clock.Advance(time.Second)
	assert.Equal(t, 1, f.source.count())
}

func TestMonitorReferenceCounting(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()
	f.monitor.Start()
	assert.Equal(t, 1, f.source.count(), "feeds open once")
	assert.Equal(t, 2, f.monitor.Started())

	f.monitor.Stop()
	feed := f.source.last()
	assert.False(t, feed.isClosed())
	assert.False(t, f.watcher.watches[0].closed)

	f.monitor.Stop()
	assert.True(t, feed.isClosed())
	assert.True(t, f.watcher.watches[0].closed)
	assert.Equal(t, 0, f.monitor.Started())

	f.monitor.Stop()
	assert.Equal(t, 0, f.monitor.Started(), "extra stops are harmless")
}

func TestMonitorStopDropsPendingWork(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()
	feed := f.source.last()

	feed.emit("start")
	feed.fail()
	f.monitor.Stop()

	f.clock.Advance(time.Minute)
	assert.Equal(t, 0, f.refreshes)
	assert.Equal(t, 1, f.source.count())
	assert.Equal(t, 0, f.clock.Pending())
}

func TestMonitorIgnoresStaleFeed(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()
	old := f.source.last()
	old.emit("start")
	old.fail()
	f.clock.Advance(time.Second)

	old.emit("zombie")
	old.fail()
	f.clock.Advance(time.Hour)
	assert.Equal(t, 2, f.source.count())
	assert.Equal(t, 1, f.refreshes, "only the event from the live connection counted")
}

func TestMonitorRestart(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor.Start()
	f.monitor.Stop()
	f.monitor.Start()

	assert.Equal(t, 2, f.source.count())
	f.source.last().emit("create")
	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 1, f.refreshes)
}

func TestMonitorUnsubscribe(t *testing.T) {
	f := newMonitorFixture(t)
	other := 0
	token := f.monitor.Subscribe(func() { other++ })
	f.monitor.Start()

	f.source.last().emit("start")
	f.clock.Advance(300 * time.Millisecond)
	f.monitor.Unsubscribe(token)
	f.source.last().emit("stop")
	f.clock.Advance(300 * time.Millisecond)

	assert.Equal(t, 1, other)
	assert.Equal(t, 2, f.refreshes)
}

func TestMonitorWatchFailureIsNotFatal(t *testing.T) {
	f := newMonitorFixture(t)
	f.watcher.err = errors.New("permission denied")
	f.monitor.Start()

	assert.Empty(t, f.watcher.watches)
	f.source.last().emit("start")
	f.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 1, f.refreshes)
}

func TestMonitorNonPositiveBackoffUsesDefault(t *testing.T) {
	fake := clock.Fake(epoch)
	source := &fakeEvents{}
	monitor := NewMonitor(MonitorOptions{
		Events:  source,
		Clock:   fake,
		Backoff: -time.Second,
	})
	monitor.Start()
	defer monitor.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		source.last().fail()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed failure did not return")
	}

	assert.Equal(t, 1, source.count())
	fake.Advance(DefaultBackoff - time.Millisecond)
	assert.Equal(t, 1, source.count(), "waits for the default backoff")
	fake.Advance(time.Millisecond)
	assert.Equal(t, 2, source.count())
}
