// Package cmdline converts between a list of words and a single
// shell-like string, so a command can be edited as one line of text.
//
// Words are separated by whitespace. Single and double quotes protect a
// run of characters containing whitespace or the other quote character.
// A backslash protects any character. Quotes may appear in the middle of
// a word.
package cmdline

import "strings"

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n'
}

// Quote joins words into one string that Unquote splits back into the
// same words.
func Quote(words []string) string {
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = quoteWord(word)
	}
	return strings.Join(quoted, " ")
}

func quoteWord(word string) string {
	if word == "" {
		return `""`
	}

	var b strings.Builder
	var quote rune
	for _, c := range word {
		switch {
		case c == '\\' || (quote != 0 && c == quote):
			b.WriteByte('\\')
		case quote == 0 && (c == '\'' || isSpace(c)):
			quote = '"'
		case quote == 0 && c == '"':
			quote = '\''
		}
		b.WriteRune(c)
	}

	if quote == 0 {
		return b.String()
	}
	return string(quote) + b.String() + string(quote)
}

// Unquote splits text into words. It never fails: a trailing backslash
// is dropped and an unterminated quote runs to the end of the input.
func Unquote(text string) []string {
	runes := []rune(text)
	words := []string{}

	next := 0
	skipSpace := func() {
		for next < len(runes) && isSpace(runes[next]) {
			next++
		}
	}

	skipSpace()
	for next < len(runes) {
		var word strings.Builder
		var quote rune
	scan:
		for ; next < len(runes); next++ {
			c := runes[next]
			switch {
			case c == '\\':
				next++
				if next < len(runes) {
					word.WriteRune(runes[next])
				}
			case quote != 0 && c == quote:
				quote = 0
			case quote != 0:
				word.WriteRune(c)
			case c == '"' || c == '\'':
				quote = c
			case isSpace(c):
				break scan
			default:
				word.WriteRune(c)
			}
		}
		words = append(words, word.String())
		skipSpace()
	}
	return words
}
