package sanitize

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirp/apperr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"collapses spaces", "hello    world", "hello world"},
		{"trims", "   hello  ", "hello"},
		{"crlf", "one\r\ntwo", "one\ntwo"},
		{"bare cr", "one\rtwo", "one\ntwo"},
		{"trims each line", "  one  \n   two   ", "one\ntwo"},
		{"keeps blank lines between", "one\n\ntwo", "one\n\ntwo"},
		{"drops leading and trailing newlines", "\n\none\n\n", "one"},
		{"strips nul and bell", "he\x00llo\x07", "hello"},
		{"strips tab", "a\tb", "ab"},
		{"strips del", "a\x7fb", "ab"},
		{"strips escape sequences", "\x1b[31mred", "[31mred"},
		{"unicode kept", "héllo  wörld 🐦", "héllo wörld 🐦"},
		{"only whitespace", " \n \r\n  ", ""},
		{"non-breaking space collapses", "a\u00a0\u00a0b", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	alphabet := []rune{'a', 'b', ' ', ' ', '\t', '\n', '\r', 0x00, 0x0b, 0x1f, 0x7f, 'é', '\u00a0', '\u2028', 0x85}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		n := rng.Intn(40)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		s := b.String()

		once := Normalize(s)
		require.Equal(t, once, Normalize(once), "input %q", s)

		for _, r := range once {
			require.False(t, isControl(r), "control %U survived in %q", r, once)
		}

		if !strings.ContainsAny(s, "\r\n") {
			assert.LessOrEqual(t, utf8.RuneCountInString(once), utf8.RuneCountInString(s))
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "", NormalizeValue(nil))
	assert.Equal(t, "", NormalizeValue(42))
	assert.Equal(t, "", NormalizeValue([]string{"x"}))
	assert.Equal(t, "x y", NormalizeValue(" x  y "))
}

func TestValidateText(t *testing.T) {
	t.Run("accepts and normalizes", func(t *testing.T) {
		text, err := ValidateText("  hi   there ")
		require.NoError(t, err)
		assert.Equal(t, "hi there", text)
	})

	t.Run("rejects empty after normalization", func(t *testing.T) {
		_, err := ValidateText(" \x00\t ")
		assert.ErrorIs(t, err, apperr.ErrEmptyText)
	})

	t.Run("rejects non-string as empty", func(t *testing.T) {
		_, err := ValidateText(12)
		assert.ErrorIs(t, err, apperr.ErrEmptyText)
	})

	t.Run("length is checked before normalization", func(t *testing.T) {
		raw := "a" + strings.Repeat(" ", MaxTextLength)
		_, err := ValidateText(raw)
		assert.ErrorIs(t, err, apperr.ErrTextTooLong)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		text, err := ValidateText(strings.Repeat("é", MaxTextLength))
		require.NoError(t, err)
		assert.Equal(t, MaxTextLength, utf8.RuneCountInString(text))
	})
}
