// Package sanitize normalizes user-submitted text before it is stored.
package sanitize

import (
	"strings"
	"unicode/utf8"

	"chirp/apperr"
)

// MaxTextLength is the cap on post and comment text, counted in characters of
// the raw input.
const MaxTextLength = 280

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize strips ASCII control characters (except LF), turns CRLF and CR
// into LF, collapses whitespace runs within each line to a single space and
// trims every line as well as the whole result. Line breaks between lines are
// kept. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = lineEndings.Replace(s)
	s = strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// NormalizeValue is Normalize for arbitrary decoded JSON values. Anything that
// is not a string normalizes to "".
func NormalizeValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Normalize(s)
}

// ValidateText checks the raw length, then normalizes. It returns
// apperr.ErrTextTooLong or apperr.ErrEmptyText on failure.
func ValidateText(raw any) (string, error) {
	if s, ok := raw.(string); ok && utf8.RuneCountInString(s) > MaxTextLength {
		return "", apperr.ErrTextTooLong
	}
	text := NormalizeValue(raw)
	if text == "" {
		return "", apperr.ErrEmptyText
	}
	return text, nil
}

func isControl(r rune) bool {
	return (r <= 0x1F && r != '\n') || r == 0x7F
}
