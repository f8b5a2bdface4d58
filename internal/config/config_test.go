package config

import (
	"testing"
	"time"

	"github.com/docker/docker/api"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.Server.Addr())
	assert.Equal(t, "localhost", cfg.Server.ProxyDomain)

	assert.Equal(t, client.DefaultDockerHost, cfg.Engine.Host)
	assert.Equal(t, "v"+api.DefaultVersion, cfg.Engine.APIVersion)
	assert.Equal(t, "/var/lib/docker", cfg.Engine.DataRoot)

	assert.Equal(t, 300*time.Millisecond, cfg.Events.Debounce)
	assert.Equal(t, time.Second, cfg.Events.Backoff)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":               "9000",
		"HOST":               "127.0.0.1",
		"PROXY_DOMAIN":       "apps.internal",
		"DOCKER_HOST":        "tcp://10.0.0.2:2375",
		"DOCKER_API_VERSION": "1.41",
		"DOCKER_DATA_ROOT":   "/srv/docker",
		"EVENTS_DEBOUNCE":    "50ms",
		"EVENTS_BACKOFF":     "5s",
		"LOG_LEVEL":          "debug",
		"LOG_DEV":            "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "apps.internal", cfg.Server.ProxyDomain)
	assert.Equal(t, "tcp://10.0.0.2:2375", cfg.Engine.Host)
	assert.Equal(t, "v1.41", cfg.Engine.APIVersion)
	assert.Equal(t, "/srv/docker", cfg.Engine.DataRoot)
	assert.Equal(t, 50*time.Millisecond, cfg.Events.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Events.Backoff)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("EVENTS_DEBOUNCE", "soon")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 300*time.Millisecond, cfg.Events.Debounce)
}

func TestNormalizeAPIVersion(t *testing.T) {
	assert.Equal(t, "v1.43", NormalizeAPIVersion("1.43"))
	assert.Equal(t, "v1.43", NormalizeAPIVersion("v1.43"))
	assert.Equal(t, "v"+api.DefaultVersion, NormalizeAPIVersion(""))
}
