package attach

import (
	"bufio"
	"bytes"
	"net/textproto"
	"strconv"
	"strings"
)

var headerEnd = []byte("\r\n\r\n")

// Status is the parsed response header block.
type Status struct {
	Proto  string
	Code   int
	Reason string
	Header textproto.MIMEHeader
}

// OK reports a 200 response.
func (s Status) OK() bool { return s.Code == 200 }

// ScanHeaders looks for the end of the header block in buf. It returns
// the parsed status and the offset of the first body byte, or ok=false if
// the block is not complete yet.
func ScanHeaders(buf []byte) (status Status, bodyStart int, ok bool) {
	end := bytes.Index(buf, headerEnd)
	if end == -1 {
		return Status{}, 0, false
	}
	return parseStatus(buf[:end]), end + len(headerEnd), true
}

func parseStatus(block []byte) Status {
	line, rest, _ := bytes.Cut(block, []byte("\r\n"))

	var status Status
	parts := strings.Split(string(line), " ")
	status.Proto = parts[0]
	if len(parts) > 1 {
		status.Code, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		status.Reason = strings.Join(parts[2:], " ")
	}

	status.Header = textproto.MIMEHeader{}
	if len(rest) > 0 {
		data := make([]byte, 0, len(rest)+len(headerEnd))
		data = append(append(data, rest...), headerEnd...)
		reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(data)))
		if header, err := reader.ReadMIMEHeader(); err == nil {
			status.Header = header
		}
	}
	return status
}
