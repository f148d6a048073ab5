package cursor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 123_000_000, time.FixedZone("CET", 3600))

	assert.Equal(t, "2024-01-15T09:30:00.123Z|65a4f0c2e1", Encode(at, "65a4f0c2e1"))
}

func TestRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 5_000_000, time.UTC)

	p, ok := Decode(Encode(at, "abc"))
	require.True(t, ok)
	assert.True(t, p.At.Equal(at))
	assert.Equal(t, "abc", p.ID)
}

func TestDecode_SplitsOnFirstSeparator(t *testing.T) {
	p, ok := Decode("2024-01-15T10:30:00.000Z|a|b")
	require.True(t, ok)
	assert.Equal(t, "a|b", p.ID)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no separator", "2024-01-15T10:30:00.000Z"},
		{"missing id", "2024-01-15T10:30:00.000Z|"},
		{"missing timestamp", "|abc"},
		{"garbage timestamp", "yesterday|abc"},
		{"invalid date", "2024-13-45T10:30:00.000Z|abc"},
		{"separator only", "|"},
		{"base64 noise", "eyJpZCI6MX0=|"},
		{"unix seconds", "1705314600|abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, ok := Decode(tt.in)
				assert.False(t, ok)
				assert.Nil(t, Parse(tt.in))
			})
		})
	}
}

func TestDecode_AcceptsOffsets(t *testing.T) {
	p, ok := Decode("2024-01-15T11:30:00+01:00|x")
	require.True(t, ok)
	assert.Equal(t, time.UTC, p.At.Location())
	assert.Equal(t, 10, p.At.Hour())
}
