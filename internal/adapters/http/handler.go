package http

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/core/attach"
	"github.com/melih/lighthouse-dock/internal/core/domain"
	"github.com/melih/lighthouse-dock/internal/core/ports"
)

// ContainerLookup is the read side of the container cache.
type ContainerLookup interface {
	Containers() domain.Snapshot
	Lookup(idOrName string) (domain.Container, bool)
}

type ContainerHandler struct {
	service ports.ContainerService
	cache   ContainerLookup
	logger  *zap.Logger
}

func NewContainerHandler(service ports.ContainerService, cache ContainerLookup, logger *zap.Logger) *ContainerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContainerHandler{service: service, cache: cache, logger: logger}
}

// ContainerView is the JSON shape of one cached container.
type ContainerView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Image    string         `json:"image"`
	Command  []string       `json:"command"`
	Running  bool           `json:"running"`
	Paused   bool           `json:"paused"`
	ExitCode int            `json:"exit_code"`
	TTY      bool           `json:"tty"`
	IP       string         `json:"ip,omitempty"`
	State    map[string]any `json:"state"`
}

func viewOf(c domain.Container) ContainerView {
	return ContainerView{
		ID:       c.ID,
		Name:     c.Name,
		Image:    c.Image(),
		Command:  c.Command(),
		Running:  c.Running(),
		Paused:   c.Paused(),
		ExitCode: c.ExitCode(),
		TTY:      c.TTY(),
		IP:       c.IPAddress(),
		State:    c.State,
	}
}

// ListContainers serves the cached snapshot ordered by name.
func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	sorted := h.cache.Containers().Sorted()
	views := make([]ContainerView, 0, len(sorted))
	for _, container := range sorted {
		views = append(views, viewOf(container))
	}
	return c.JSON(views)
}

// GetContainer serves one container found by id or name.
func (h *ContainerHandler) GetContainer(c *fiber.Ctx) error {
	container, ok := h.cache.Lookup(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Container not found",
		})
	}
	return c.JSON(viewOf(container))
}

type StartContainerRequest struct {
	Image string `json:"image"`
}

func (h *ContainerHandler) StartContainer(c *fiber.Ctx) error {
	var req StartContainerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image name is required",
		})
	}

	containerID, err := h.service.StartContainer(c.Context(), req.Image)
	if err != nil {
		h.logger.Warn("start failed", zap.String("image", req.Image), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    containerID,
		"image": req.Image,
	})
}

func (h *ContainerHandler) StopContainer(c *fiber.Ctx) error {
	id := h.resolve(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	if err := h.service.StopContainer(c.Context(), id); err != nil {
		h.logger.Warn("stop failed", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// GetContainerLogs serves the decoded output of a container as text.
// Containers without a tty log multiplexed frames, which are unpacked;
// tty output is passed through.
func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	id := h.resolve(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	framing := attach.FramingBinary
	if container, ok := h.cache.Lookup(id); ok && container.TTY() {
		framing = attach.FramingText
	}

	logs, err := h.service.GetContainerLogs(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	defer logs.Close()

	var text strings.Builder
	reader := attach.NewLogReader(attach.LogReaderOptions{
		Framing:  framing,
		Headless: true,
		Sink:     attach.SinkFunc(func(s string) { text.WriteString(s) }),
	})
	if _, err := io.Copy(reader, logs); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	reader.Flush()

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(text.String())
}

// resolve maps a name to its id through the cache. Unknown names are
// passed through so the engine can resolve them itself.
func (h *ContainerHandler) resolve(idOrName string) string {
	if container, ok := h.cache.Lookup(idOrName); ok {
		return container.ID
	}
	return idOrName
}
