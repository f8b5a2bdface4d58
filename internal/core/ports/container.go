package ports

import (
	"context"
	"io"

	"github.com/melih/lighthouse-dock/internal/core/domain"
)

// ContainerReader is the read side of the engine API the cache polls.
type ContainerReader interface {
	// ListContainers returns every container, running or not, as raw
	// list-endpoint entries. The list is cheap but may be stale.
	ListContainers(ctx context.Context) ([]domain.Summary, error)
	// InspectContainer returns the authoritative detail document for id.
	InspectContainer(ctx context.Context, id string) (map[string]any, error)
}

// ContainerService defines the container operations exposed over HTTP.
// This interface allows switching engines without touching the handlers.
type ContainerService interface {
	ContainerReader
	StartContainer(ctx context.Context, image string) (string, error)
	StopContainer(ctx context.Context, id string) error
	// GetContainerLogs returns the historical output of id exactly as the
	// engine sends it: multiplexed frames unless the container has a tty.
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)
}
