package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-dock/internal/adapters/docker"
	"github.com/melih/lighthouse-dock/internal/adapters/fswatch"
	"github.com/melih/lighthouse-dock/internal/adapters/http"
	"github.com/melih/lighthouse-dock/internal/adapters/socket"
	"github.com/melih/lighthouse-dock/internal/config"
	"github.com/melih/lighthouse-dock/internal/core/cache"
	"github.com/melih/lighthouse-dock/internal/core/events"
	"github.com/melih/lighthouse-dock/internal/logging"
	"github.com/melih/lighthouse-dock/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// 1. Initialize Adapters (Infrastructure)
	dockerAdapter, err := docker.NewAdapter(cfg.Engine, logger.Component("docker"))
	if err != nil {
		logger.Fatal("Failed to initialize Docker adapter", zap.Error(err))
	}
	defer dockerAdapter.Close()

	dialer, err := socket.NewDialer(cfg.Engine.Host, logger.Component("socket"))
	if err != nil {
		logger.Fatal("Failed to initialize engine dialer", zap.Error(err))
	}

	// 2. Change monitor and container cache
	monitor := events.NewMonitor(events.MonitorOptions{
		Events:    socket.NewEventSource(dialer, cfg.Engine.APIVersion, logger.Component("events")),
		Watcher:   fswatch.New(logger.Component("fswatch")),
		WatchPath: cfg.Engine.DataRoot,
		Debounce:  cfg.Events.Debounce,
		Backoff:   cfg.Events.Backoff,
		Logger:    logger.Component("monitor"),
		Metrics:   m,
	})
	containers := cache.New(cache.Options{
		Reader:  dockerAdapter,
		Signal:  monitor,
		Logger:  logger.Component("cache"),
		Metrics: m,
	})
	containers.Open()
	defer containers.Close()

	// 3. HTTP handlers on Fiber
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	http.Register(app, http.Handlers{
		Containers: http.NewContainerHandler(dockerAdapter, containers, logger.Component("http")),
		Cmdline:    http.NewCmdlineHandler(),
		Proxy:      http.NewProxyHandler(containers, cfg.Server.ProxyDomain, logger.Component("proxy")),
		Gatherer:   registry,
	})

	// 4. Serve until interrupted
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("engine", cfg.Engine.Host),
			zap.String("api_version", cfg.Engine.APIVersion))
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", zap.Stringer("signal", sig))
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Warn("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		logger.Error("Server failed", zap.Error(err))
	}
}
