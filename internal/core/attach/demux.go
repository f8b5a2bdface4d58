package attach

// Stage is the position of a Demuxer in the attach exchange.
type Stage int

const (
	// StageHeaders waits for the end of the HTTP response header block.
	StageHeaders Stage = iota
	// StageDetect waits for enough body bytes to tell tty from framed.
	StageDetect
	// StageTTY passes raw terminal output through.
	StageTTY
	// StageFramed decodes multiplexed frames.
	StageFramed
	// StageFailed renders a non-200 response as text.
	StageFailed
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageHeaders:
		return "headers"
	case StageDetect:
		return "detect"
	case StageTTY:
		return "tty"
	case StageFramed:
		return "framed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// minDetectBytes is how much body is needed before the mode is known.
const minDetectBytes = 2

// DemuxerOptions configures a Demuxer.
type DemuxerOptions struct {
	// TTY, when set, skips mode detection.
	TTY *bool
	// Headless starts after the header block, for bodies whose HTTP
	// framing was already handled elsewhere.
	Headless bool
	// Terminal receives tty output.
	Terminal Sink
	// Logs receives framed payloads and failure text. Defaults to
	// Terminal.
	Logs Sink
	// OnStage is called on every stage change.
	OnStage func(Stage, Status)
	// OnFrame observes each decoded frame before its payload is written.
	OnFrame func(Frame)
}

// Demuxer consumes the attach response stream. It is a push decoder:
// Process is handed everything received so far that has not yet been
// consumed, and returns how much of it was used.
//
// A Demuxer is not safe for concurrent use.
type Demuxer struct {
	opts    DemuxerOptions
	stage   Stage
	status  Status
	text    *textDecoder
	failure *LogReader
	pending []byte
}

// NewDemuxer returns a Demuxer at StageHeaders, or StageDetect when
// opts.Headless is set.
func NewDemuxer(opts DemuxerOptions) *Demuxer {
	if opts.Terminal == nil {
		opts.Terminal = SinkFunc(func(string) {})
	}
	if opts.Logs == nil {
		opts.Logs = opts.Terminal
	}

	d := &Demuxer{opts: opts, text: newTextDecoder()}
	if opts.Headless {
		d.stage = StageDetect
		d.status = Status{Code: 200}
	}
	return d
}

// Stage returns the current stage.
func (d *Demuxer) Stage() Stage { return d.stage }

// Status returns the parsed response status once headers are complete.
func (d *Demuxer) Status() Status { return d.status }

// Write appends p to any unconsumed data and processes it. It always
// accepts all of p.
func (d *Demuxer) Write(p []byte) (int, error) {
	buf := p
	if len(d.pending) > 0 {
		buf = append(d.pending, p...)
	}
	n := d.Process(buf)
	d.pending = append(d.pending[:0:0], buf[n:]...)
	return len(p), nil
}

// Buffered returns how many bytes Write is holding for the next call.
func (d *Demuxer) Buffered() int { return len(d.pending) }

// Process decodes as much of buf as possible and returns the number of
// leading bytes consumed. Bytes past that point must be presented again,
// followed by new data. Short input is never an error.
func (d *Demuxer) Process(buf []byte) int {
	consumed := 0
	for {
		switch d.stage {
		case StageHeaders:
			status, n, ok := ScanHeaders(buf[consumed:])
			if !ok {
				return consumed
			}
			consumed += n
			d.status = status
			if !status.OK() {
				d.fail(status)
				continue
			}
			d.setStage(StageDetect)

		case StageDetect:
			if d.opts.TTY == nil {
				head := buf[consumed:]
				if len(head) < minDetectBytes {
					return consumed
				}
				tty := !looksFramed(head)
				d.opts.TTY = &tty
			}
			if *d.opts.TTY {
				d.setStage(StageTTY)
			} else {
				d.setStage(StageFramed)
			}

		case StageTTY:
			if text := d.text.decode(buf[consumed:]); text != "" {
				d.opts.Terminal.WriteText(text)
			}
			return len(buf)

		case StageFramed:
			return consumed + d.processFrames(buf[consumed:])

		case StageFailed:
			return consumed + d.failure.Process(buf[consumed:])

		default:
			return consumed
		}
	}
}

// Flush writes out a trailing partial rune, if any. Call it once the
// stream has ended.
func (d *Demuxer) Flush() {
	text := d.text.flush()
	if text == "" {
		return
	}
	if d.stage == StageTTY {
		d.opts.Terminal.WriteText(text)
	} else {
		d.opts.Logs.WriteText(text)
	}
}

func (d *Demuxer) processFrames(buf []byte) int {
	at := 0
	var out []byte
	for {
		frame, n, ok := ParseFrame(buf[at:])
		if !ok {
			break
		}
		if d.opts.OnFrame != nil {
			d.opts.OnFrame(frame)
		}
		out = append(out, frame.Payload...)
		at += n
	}
	if len(out) > 0 {
		if text := d.text.decode(out); text != "" {
			d.opts.Logs.WriteText(text)
		}
	}
	return at
}

func (d *Demuxer) fail(status Status) {
	d.failure = NewLogReader(LogReaderOptions{
		Framing:  FramingText,
		Headless: true,
		Sink:     d.opts.Logs,
	})
	reason := status.Reason
	if reason == "" {
		reason = "attach failed"
	}
	d.opts.Logs.WriteText(reason + "\r\n")
	d.setStage(StageFailed)
}

func (d *Demuxer) setStage(stage Stage) {
	d.stage = stage
	if d.opts.OnStage != nil {
		d.opts.OnStage(stage, d.status)
	}
}
