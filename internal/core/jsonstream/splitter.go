package jsonstream

import "bytes"

// Splitter accumulates stream data and hands out complete JSON values one
// at a time, retaining the incomplete tail for the next Write.
//
// A Splitter is not safe for concurrent use.
type Splitter struct {
	buf []byte
}

// Write appends p to the pending data. It never fails.
func (s *Splitter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Next returns the next complete value with surrounding whitespace
// removed. The returned slice is only valid until the next Write. A bare
// token touching the end of the pending data is held back, since more of
// it may still arrive.
func (s *Splitter) Next() ([]byte, bool) {
	end := Skip(s.buf, 0)
	if end == 0 {
		s.dropLeadingSpace()
		return nil, false
	}
	if end == len(s.buf) && bytes.IndexByte(wordEnds, s.buf[end-1]) == -1 {
		return nil, false
	}

	value := bytes.TrimSpace(s.buf[:end])
	rest := s.buf[end:]
	s.buf = s.buf[:0:0]
	if len(rest) > 0 {
		s.buf = append(s.buf, rest...)
	}
	return value, true
}

// Buffered returns the number of pending bytes not yet handed out.
func (s *Splitter) Buffered() int {
	return len(s.buf)
}

// Reset discards all pending data.
func (s *Splitter) Reset() {
	s.buf = nil
}

func (s *Splitter) dropLeadingSpace() {
	trimmed := bytes.TrimLeft(s.buf, string(spaces))
	if len(trimmed) == 0 {
		s.buf = s.buf[:0]
	}
}
