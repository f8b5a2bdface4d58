// Package jsonstream slices individual JSON values out of a byte stream in
// which several documents are concatenated without separators, as the
// engine's event feed delivers them.
//
// Values are not validated. Skip only finds where one value ends; a later
// json.Unmarshal checks it.
package jsonstream

import "bytes"

var (
	spaces   = []byte(" \t\n\r\v")
	wordEnds = []byte(" \t\n\r\v[{}]\"")
)

// Skip returns the offset just past the first complete JSON value at or
// after pos in buf, or 0 if buf holds no complete value from pos on.
//
// Objects, arrays, strings and bare tokens (numbers, true, false, null)
// all count as one unit of depth; the value is complete once depth is
// back to zero. A bare token that runs to the end of buf counts as
// complete.
func Skip(buf []byte, pos int) int {
	if pos < 0 || pos >= len(buf) {
		return 0
	}

	var any, inWord, inString bool
	depth := 0

	for ; pos < len(buf); pos++ {
		if any && depth <= 0 {
			break
		}

		ch := buf[pos]
		if inWord {
			if bytes.IndexByte(wordEnds, ch) != -1 {
				inWord = false
				depth--
				pos-- // the delimiter belongs to whatever follows
			}
			continue
		}

		if bytes.IndexByte(spaces, ch) != -1 {
			continue
		}

		if inString {
			switch ch {
			case '\\':
				if pos+1 < len(buf) {
					pos++
				}
			case '"':
				inString = false
				depth--
			}
			continue
		}

		any = true
		switch ch {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		case '"':
			inString = true
			depth++
		default:
			inWord = true
			depth++
		}
	}

	if inWord && depth == 1 {
		depth = 0
	}
	if !any || depth > 0 {
		return 0
	}
	return pos
}
