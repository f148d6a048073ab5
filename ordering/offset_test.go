package ordering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	text string
	at   time.Time
}

func (n note) Timestamp() time.Time { return n.at }

func texts(items []note) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.text
	}
	return out
}

func TestNewestFirst(t *testing.T) {
	inserted := []note{
		{"first", ms(10)},
		{"second", ms(30)},
		{"third", ms(20)},
		{"fourth", ms(30)},
	}

	got := NewestFirst(inserted)

	assert.Equal(t, []string{"fourth", "second", "third", "first"}, texts(got))
	assert.Equal(t, "first", inserted[0].text, "input must not be reordered")
}

func TestPageOffset(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}

	page, next := PageOffset(items, 0, 2)
	assert.Equal(t, []int{0, 1}, page)
	require.NotNil(t, next)
	assert.Equal(t, 2, *next)

	page, next = PageOffset(items, *next, 2)
	assert.Equal(t, []int{2, 3}, page)
	require.NotNil(t, next)

	page, next = PageOffset(items, *next, 2)
	assert.Equal(t, []int{4}, page)
	assert.Nil(t, next)

	page, next = PageOffset(items, 3, 2)
	assert.Equal(t, []int{3, 4}, page)
	assert.Nil(t, next, "exact end has no next offset")

	page, next = PageOffset(items, 99, 2)
	assert.Empty(t, page)
	assert.Nil(t, next)

	page, _ = PageOffset(items, -3, 1)
	assert.Equal(t, []int{0}, page)
}

func TestParseOffset(t *testing.T) {
	assert.Equal(t, 0, ParseOffset(""))
	assert.Equal(t, 0, ParseOffset("abc"))
	assert.Equal(t, 0, ParseOffset("-4"))
	assert.Equal(t, 0, ParseOffset("2024-01-15T10:30:00.000Z|x"))
	assert.Equal(t, 40, ParseOffset("40"))
}
