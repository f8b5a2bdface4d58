package attach

import (
	"encoding/binary"

	"github.com/docker/docker/pkg/stdcopy"
)

// FrameHeaderLen is the size of a multiplexed frame header: one stream
// byte, three reserved bytes, four bytes of big-endian payload length.
const FrameHeaderLen = 8

// Frame is one multiplexed chunk of container output.
type Frame struct {
	Stream  stdcopy.StdType
	Payload []byte
}

// ParseFrame reads one frame from the start of buf. ok is false until
// the header and the whole payload are present. The payload aliases buf.
func ParseFrame(buf []byte) (frame Frame, n int, ok bool) {
	if len(buf) < FrameHeaderLen {
		return Frame{}, 0, false
	}
	size := int(binary.BigEndian.Uint32(buf[4:FrameHeaderLen]))
	if len(buf)-FrameHeaderLen < size {
		return Frame{}, 0, false
	}
	n = FrameHeaderLen + size
	return Frame{Stream: stdcopy.StdType(buf[0]), Payload: buf[FrameHeaderLen:n]}, n, true
}

// AppendFrame encodes payload as a frame on stream and appends it to dst.
func AppendFrame(dst []byte, stream stdcopy.StdType, payload []byte) []byte {
	var header [FrameHeaderLen]byte
	header[0] = byte(stream)
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	dst = append(dst, header[:]...)
	return append(dst, payload...)
}

// StreamName names a stream selector for logs and metrics.
func StreamName(stream stdcopy.StdType) string {
	switch stream {
	case stdcopy.Stdin:
		return "stdin"
	case stdcopy.Stdout:
		return "stdout"
	case stdcopy.Stderr:
		return "stderr"
	default:
		return "other"
	}
}

// looksFramed decides the attach mode from the first two body bytes: a
// stream selector of 0, 1 or 2 followed by a zero reserved byte means
// multiplexed frames, anything else is raw tty output.
func looksFramed(head []byte) bool {
	return head[0] <= byte(stdcopy.Stderr) && head[1] == 0
}
