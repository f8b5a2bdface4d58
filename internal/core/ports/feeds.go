package ports

import (
	"io"

	"github.com/melih/lighthouse-dock/internal/core/domain"
)

// EventHandler receives one event feed's deliveries.
type EventHandler struct {
	Event  func(domain.Event)
	Closed func(err error)
}

// EventSource opens the engine's long-lived event feed. The feed is
// expected to end now and then; Closed reports it once per opened feed.
type EventSource interface {
	OpenEvents(handler EventHandler) (io.Closer, error)
}

// Watcher reports changes below a filesystem path. It is only a hint to
// re-poll, so events carry no detail.
type Watcher interface {
	Watch(path string, changed func(), failed func(error)) (io.Closer, error)
}
