package attach

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Sink receives decoded text, in order.
type Sink interface {
	WriteText(text string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string)

// WriteText calls f.
func (f SinkFunc) WriteText(text string) { f(text) }

// textDecoder turns a byte stream into UTF-8 text. A rune split across
// two calls is held back until its last byte arrives; malformed bytes
// become U+FFFD.
type textDecoder struct {
	transformer transform.Transformer
	pending     []byte
	scratch     [4096]byte
}

func newTextDecoder() *textDecoder {
	return &textDecoder{transformer: unicode.UTF8.NewDecoder()}
}

func (d *textDecoder) decode(p []byte) string {
	return d.run(p, false)
}

// flush emits whatever is pending, replacing an incomplete rune.
func (d *textDecoder) flush() string {
	out := d.run(nil, true)
	d.transformer.Reset()
	return out
}

func (d *textDecoder) run(p []byte, atEOF bool) string {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}

	var out strings.Builder
	for {
		nDst, nSrc, err := d.transformer.Transform(d.scratch[:], src, atEOF)
		out.Write(d.scratch[:nDst])
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) {
			continue
		}
		break
	}
	if len(src) > 0 {
		d.pending = append([]byte(nil), src...)
	}
	return out.String()
}
