package attach

import (
	"bytes"
	"encoding/base64"
	"strconv"
)

// Framing selects how a LogReader splits the body into records.
type Framing int

const (
	// FramingLines reads "<stream-index> <base64-payload>\n" records.
	FramingLines Framing = iota
	// FramingBinary reads 8-byte-header multiplexed frames.
	FramingBinary
	// FramingText passes the body through as text.
	FramingText
)

// LogReaderOptions configures a LogReader.
type LogReaderOptions struct {
	Framing Framing
	// Headless skips the HTTP header block.
	Headless bool
	Sink     Sink
	// OnStatus is called once the header block has been parsed.
	OnStatus func(Status)
}

// LogReader consumes a historical log stream. Each call to Process that
// decodes anything writes it to the sink as a single text fragment.
//
// A LogReader is not safe for concurrent use.
type LogReader struct {
	opts        LogReaderOptions
	headersDone bool
	status      Status
	text        *textDecoder
	pending     []byte
}

// NewLogReader returns a LogReader waiting for the header block unless
// opts.Headless is set.
func NewLogReader(opts LogReaderOptions) *LogReader {
	if opts.Sink == nil {
		opts.Sink = SinkFunc(func(string) {})
	}
	r := &LogReader{opts: opts, text: newTextDecoder()}
	if opts.Headless {
		r.headersDone = true
		r.status = Status{Code: 200}
	}
	return r
}

// Status returns the response status once headers are complete.
func (r *LogReader) Status() Status { return r.status }

// Write appends p to any held-back data and processes it.
func (r *LogReader) Write(p []byte) (int, error) {
	buf := p
	if len(r.pending) > 0 {
		buf = append(r.pending, p...)
	}
	n := r.Process(buf)
	r.pending = append(r.pending[:0:0], buf[n:]...)
	return len(p), nil
}

// Process decodes buf and returns how many leading bytes were consumed.
// In line framing the last, possibly partial, line is left unconsumed so
// that it is presented again together with the next delivery.
func (r *LogReader) Process(buf []byte) int {
	consumed := 0
	if !r.headersDone {
		status, n, ok := ScanHeaders(buf)
		if !ok {
			return 0
		}
		r.headersDone = true
		r.status = status
		consumed = n
		if r.opts.OnStatus != nil {
			r.opts.OnStatus(status)
		}
		if !status.OK() {
			// The body of a refused request is an error message, not log records.
			r.opts.Framing = FramingText
			reason := status.Reason
			if reason == "" {
				reason = "request failed"
			}
			r.opts.Sink.WriteText(reason + "\r\n")
		}
	}

	body := buf[consumed:]
	var decoded []byte
	var used int
	switch r.opts.Framing {
	case FramingLines:
		decoded, used = decodeLines(body)
	case FramingBinary:
		decoded, used = decodeFrames(body)
	default:
		decoded, used = body, len(body)
	}

	if len(decoded) > 0 {
		if text := r.text.decode(decoded); text != "" {
			r.opts.Sink.WriteText(text)
		}
	}
	return consumed + used
}

// Flush writes out a trailing partial rune, if any.
func (r *LogReader) Flush() {
	if text := r.text.flush(); text != "" {
		r.opts.Sink.WriteText(text)
	}
}

// decodeLines decodes every complete line of body. Lines that do not
// parse are skipped.
func decodeLines(body []byte) (decoded []byte, used int) {
	for {
		end := bytes.IndexByte(body[used:], '\n')
		if end == -1 {
			return decoded, used
		}
		line := body[used : used+end]
		used += end + 1

		index, payload, ok := bytes.Cut(bytes.TrimSuffix(line, []byte("\r")), []byte(" "))
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(string(index)); err != nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			continue
		}
		decoded = append(decoded, data...)
	}
}

func decodeFrames(body []byte) (decoded []byte, used int) {
	for {
		frame, n, ok := ParseFrame(body[used:])
		if !ok {
			return decoded, used
		}
		decoded = append(decoded, frame.Payload...)
		used += n
	}
}
