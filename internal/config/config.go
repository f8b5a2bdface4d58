package config

import (
	"fmt"
	"time"

	"github.com/docker/docker/api"
	"github.com/docker/docker/client"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Engine  EngineConfig
	Events  EventsConfig
	Logging LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"3000"`
	Host string `envconfig:"HOST" default:""`

	// ProxyDomain is the base domain whose subdomains are proxied to the
	// container of the same name.
	ProxyDomain string `envconfig:"PROXY_DOMAIN" default:"localhost"`
}

// EngineConfig describes how to reach the container engine.
type EngineConfig struct {
	// Host is a DOCKER_HOST style address, e.g. unix:///var/run/docker.sock.
	Host       string `envconfig:"DOCKER_HOST"`
	APIVersion string `envconfig:"DOCKER_API_VERSION"`
	DataRoot   string `envconfig:"DOCKER_DATA_ROOT" default:"/var/lib/docker"`
}

// EventsConfig tunes the change monitor.
type EventsConfig struct {
	Debounce time.Duration `envconfig:"EVENTS_DEBOUNCE" default:"300ms"`
	Backoff  time.Duration `envconfig:"EVENTS_BACKOFF" default:"1s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Engine.fillDefaults()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:        "3000",
			ProxyDomain: "localhost",
		},
		Engine: EngineConfig{
			DataRoot: "/var/lib/docker",
		},
		Events: EventsConfig{
			Debounce: 300 * time.Millisecond,
			Backoff:  time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
	cfg.Engine.fillDefaults()
	return cfg
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func (e *EngineConfig) fillDefaults() {
	if e.Host == "" {
		e.Host = client.DefaultDockerHost
	}
	e.APIVersion = NormalizeAPIVersion(e.APIVersion)
}

// NormalizeAPIVersion returns version as the engine's URL path prefix,
// e.g. "1.43" becomes "v1.43". Empty means the SDK's default version.
func NormalizeAPIVersion(version string) string {
	if version == "" {
		version = api.DefaultVersion
	}
	if version[0] != 'v' {
		version = "v" + version
	}
	return version
}
