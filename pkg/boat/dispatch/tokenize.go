package dispatch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitInvocation splits message text into its leading token (the
// candidate invocation key) and the argument text that follows.
//
// Leading whitespace is skipped. The key ends at the first whitespace rune.
// The whole whitespace run after the key is dropped, any amount including
// none, and the remainder is otherwise returned verbatim. A key with no
// trailing text yields an empty remainder.
func SplitInvocation(text string) (key, remainder string) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	end := strings.IndexFunc(text, unicode.IsSpace)
	if end < 0 {
		return text, ""
	}
	return text[:end], strings.TrimLeftFunc(text[end:], unicode.IsSpace)
}

// stripKey removes key and its separating whitespace from the front of
// text. It fails when text does not start with exactly that token.
func stripKey(text, key string) (string, bool) {
	got, rest := SplitInvocation(text)
	if got != key {
		return "", false
	}
	return rest, true
}

// field is one whitespace-delimited token and its byte span in the source.
type field struct {
	text       string
	start, end int
}

// fields splits s like strings.Fields, keeping byte offsets so the
// remainder can be cut from the original text.
func fields(s string, limit int) []field {
	var out []field
	i := 0
	for i < len(s) && (limit < 0 || len(out) < limit) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		for i < len(s) {
			r, size = utf8.DecodeRuneInString(s[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		out = append(out, field{text: s[start:i], start: start, end: i})
	}
	return out
}
