package cmdline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		want  string
	}{
		{"plain", []string{"ls", "-l", "/tmp"}, `ls -l /tmp`},
		{"space", []string{"echo", "hello world"}, `echo "hello world"`},
		{"single quote", []string{"it's"}, `"it's"`},
		{"double quote", []string{`"hi"`}, `'"hi"'`},
		{"space before double quote", []string{`say "hi"`}, `"say \"hi\""`},
		{"backslash", []string{`a\b`}, `a\\b`},
		{"both quotes", []string{`a"b'c`}, `'a"b\'c'`},
		{"empty word", []string{"a", "", "b"}, `a "" b`},
		{"no words", nil, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.words))
		})
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain", `ls -l /tmp`, []string{"ls", "-l", "/tmp"}},
		{"runs of whitespace", "  a \t b\n", []string{"a", "b"}},
		{"double quoted", `echo "hello world"`, []string{"echo", "hello world"}},
		{"other quote literal", `"it's" 'say "hi"'`, []string{"it's", `say "hi"`}},
		{"mid word quotes", `--name="my box"x`, []string{"--name=my boxx"}},
		{"escape outside quotes", `a\ b`, []string{"a b"}},
		{"escape inside quotes", `"a\"b"`, []string{`a"b`}},
		{"trailing backslash", `abc\`, []string{"abc"}},
		{"unterminated quote", `echo "open ended`, []string{"echo", "open ended"}},
		{"empty quotes", `a "" b`, []string{"a", "", "b"}},
		{"empty text", ``, []string{}},
		{"only whitespace", `   `, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unquote(tt.text))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	cases := [][]string{
		{"/bin/sh", "-c", "echo $HOME && ls -la"},
		{`C:\Program Files\app`},
		{`"`, `'`, `\`, `\\`, `"'`, `'"`},
		{"tab\there", "new\nline"},
		{"", "", ""},
		{"ünïcödé wörds", "日本語 テキスト"},
		{`mixed "double" and 'single' quotes`},
		{`trailing\`},
	}

	for _, words := range cases {
		assert.Equal(t, words, Unquote(Quote(words)), "round trip of %q", words)
	}
}
