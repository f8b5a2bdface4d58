package attach

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	parts []string
}

func (c *collector) WriteText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parts = append(c.parts, text)
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.parts, "")
}

func (c *collector) Parts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.parts...)
}

type fakeTerminal struct {
	collector
	typeable []bool
}

func (t *fakeTerminal) SetTypeable(yes bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typeable = append(t.typeable, yes)
}

func (t *fakeTerminal) lastTypeable() (bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.typeable) == 0 {
		return false, false
	}
	return t.typeable[len(t.typeable)-1], true
}

// stdFrames encodes chunks the way the engine does, using its own writer.
func stdFrames(t *testing.T, chunks ...chunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, chunk := range chunks {
		_, err := stdcopy.NewStdWriter(&buf, chunk.stream).Write([]byte(chunk.data))
		require.NoError(t, err)
	}
	return buf.Bytes()
}

type chunk struct {
	stream stdcopy.StdType
	data   string
}

const okHeaders = "HTTP/1.0 200 OK\r\nContent-Type: application/vnd.docker.raw-stream\r\n\r\n"

func boolPtr(b bool) *bool { return &b }
