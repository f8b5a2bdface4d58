package attach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanHeadersIncomplete(t *testing.T) {
	for _, in := range []string{"", "HTTP/1.0 200 OK", "HTTP/1.0 200 OK\r\n", "HTTP/1.0 200 OK\r\n\r"} {
		_, _, ok := ScanHeaders([]byte(in))
		assert.False(t, ok, "%q", in)
	}
}

func TestScanHeaders(t *testing.T) {
	in := []byte(okHeaders + "body")

	status, bodyStart, ok := ScanHeaders(in)
	require.True(t, ok)
	assert.Equal(t, len(okHeaders), bodyStart)
	assert.Equal(t, "body", string(in[bodyStart:]))
	assert.Equal(t, "HTTP/1.0", status.Proto)
	assert.Equal(t, 200, status.Code)
	assert.Equal(t, "OK", status.Reason)
	assert.True(t, status.OK())
	assert.Equal(t, "application/vnd.docker.raw-stream", status.Header.Get("Content-Type"))
	assert.Equal(t, okHeaders+"body", string(in), "input is not modified")
}

func TestScanHeadersErrorStatus(t *testing.T) {
	status, _, ok := ScanHeaders([]byte("HTTP/1.1 404 No Such Container\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, 404, status.Code)
	assert.Equal(t, "No Such Container", status.Reason)
	assert.False(t, status.OK())
}

func TestScanHeadersGarbageStatusLine(t *testing.T) {
	status, _, ok := ScanHeaders([]byte("garbage\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, 0, status.Code)
	assert.False(t, status.OK())
}
