package ordering

import (
	"sort"
	"strconv"
	"time"
)

// Timed is implemented by records that are listed newest first with a
// numeric offset cursor (comments).
type Timed interface {
	Timestamp() time.Time
}

// NewestFirst returns a copy of an insertion-ordered list sorted by timestamp
// descending. Equal timestamps keep reverse insertion order.
func NewestFirst[T Timed](items []T) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp().After(out[j].Timestamp())
	})
	return out
}

// PageOffset returns items[offset:offset+limit] and the next offset, or nil
// when nothing follows.
func PageOffset[T any](items []T, offset, limit int) ([]T, *int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}, nil
	}
	end := offset + limit
	if end >= len(items) {
		return items[offset:], nil
	}
	return items[offset:end], &end
}

// ParseOffset reads an offset cursor. Anything that is not a non-negative
// integer restarts from 0.
func ParseOffset(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
