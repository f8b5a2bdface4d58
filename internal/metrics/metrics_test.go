package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EngineEvents.Inc()
	m.Containers.Set(3)
	m.FramesDecoded.WithLabelValues("stdout").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineEvents))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Containers))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesDecoded.WithLabelValues("stdout")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestDiscardDoesNotPanic(t *testing.T) {
	m := Discard()
	m.Refreshes.Inc()
	m.AttachSessions.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes))
}
