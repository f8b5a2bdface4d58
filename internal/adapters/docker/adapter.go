package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/config"
	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/core/jsonstream"
)

// stopTimeout bounds StopContainer.
const stopTimeout = 10 * time.Second

// Adapter implements ports.ContainerService using Docker SDK
type Adapter struct {
	cli    *client.Client
	logger *zap.Logger
}

// NewAdapter creates a new Docker adapter instance
func NewAdapter(cfg config.EngineConfig, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cli, err := client.NewClientWithOpts(
		client.WithHost(cfg.Host),
		client.WithVersion(strings.TrimPrefix(cfg.APIVersion, "v")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, logger: logger}, nil
}

// Close releases the client's idle connections.
func (a *Adapter) Close() error {
	return a.cli.Close()
}

// ListContainers returns every container, stopped ones included, as the
// list endpoint reports them.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Summary, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	result := make([]domain.Summary, 0, len(containers))
	for _, c := range containers {
		fields, err := toFields(c)
		if err != nil {
			return nil, fmt.Errorf("failed to decode container %s: %w", c.ID, err)
		}
		result = append(result, domain.Summary{ID: c.ID, Fields: fields})
	}
	return result, nil
}

// InspectContainer returns the raw detail document for id.
func (a *Adapter) InspectContainer(ctx context.Context, id string) (map[string]any, error) {
	_, raw, err := a.cli.ContainerInspectWithRaw(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container %s: %w", id, err)
	}
	var detail map[string]any
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode container %s: %w", id, err)
	}
	return detail, nil
}

// StartContainer creates and starts a container from a given image
func (a *Adapter) StartContainer(ctx context.Context, image string) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is nil")
	}

	// 1. Image Pull (Ensure image exists)
	reader, err := a.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	if err := a.drainPull(image, reader); err != nil {
		return "", fmt.Errorf("failed to pull image: %w", err)
	}

	// 2. Create Container
	resp, err := a.cli.ContainerCreate(ctx, &container.Config{
		Image: image,
	}, nil, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	// 3. Start Container
	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	a.logger.Info("container started", zap.String("id", resp.ID), zap.String("image", image))
	return resp.ID, nil
}

// StopContainer stops a running container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", id, err)
	}
	return nil
}

// GetContainerLogs returns the container's output so far, framed the way
// the engine sends it.
func (a *Adapter) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	}
	logs, err := a.cli.ContainerLogs(ctx, id, options)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs of %s: %w", id, err)
	}
	return logs, nil
}

// IsNotFound reports whether err means the container or image is unknown.
func IsNotFound(err error) bool {
	var notFound errdefs.ErrNotFound
	return errors.As(err, &notFound)
}

type pullMessage struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Error  string `json:"error"`
}

// drainPull consumes the pull progress stream. Pull failures are reported
// inside the stream, not by the status code.
func (a *Adapter) drainPull(image string, r io.Reader) error {
	var splitter jsonstream.Splitter
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		splitter.Write(buf[:n])
		for {
			doc, ok := splitter.Next()
			if !ok {
				break
			}
			var msg pullMessage
			if json.Unmarshal(doc, &msg) != nil {
				continue
			}
			if msg.Error != "" {
				return errors.New(msg.Error)
			}
			a.logger.Debug("pull progress",
				zap.String("image", image), zap.String("layer", msg.ID), zap.String("status", msg.Status))
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// toFields re-encodes a typed list entry into the engine's field names.
func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
