package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Containers *ContainerHandler
	Cmdline    *CmdlineHandler
	Proxy      *ProxyHandler
	// Gatherer backs /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
}

// Register mounts the API routes on app.
func Register(app *fiber.App, h Handlers) {
	// Subdomain proxy runs before any route; requests for the API host
	// fall through.
	if h.Proxy != nil {
		app.Use(h.Proxy.ProxyRequest)
	}

	if h.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	containers := v1.Group("/containers")
	containers.Get("/", h.Containers.ListContainers)
	containers.Post("/", h.Containers.StartContainer)
	containers.Get("/:id", h.Containers.GetContainer)
	containers.Delete("/:id", h.Containers.StopContainer)
	containers.Get("/:id/logs", h.Containers.GetContainerLogs)

	cmd := v1.Group("/cmdline")
	cmd.Post("/quote", h.Cmdline.Quote)
	cmd.Post("/unquote", h.Cmdline.Unquote)
}
