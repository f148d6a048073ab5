// Package ordering defines the feed's total order and keyset pagination.
//
// Records are ordered by creation time descending, ties broken by id
// descending. A page after cursor (ts, id) holds the records with
// created_at < ts, or created_at == ts and id < id. Stores run this predicate
// natively; Page runs it in memory.
package ordering

import (
	"sort"
	"time"

	"chirp/cursor"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Key is a record's position in the total order.
type Key struct {
	At time.Time
	ID string
}

// Keyed is implemented by anything that can be paginated by keyset.
type Keyed interface {
	OrderKey() Key
}

// Query describes one page request against a post listing.
type Query struct {
	// AuthorID restricts the listing to one author when non-empty.
	AuthorID string
	// After is the decoded cursor; nil starts from the newest record.
	After *cursor.Position
	Limit int
	// Viewer is used for per-item annotations only.
	Viewer string
}

// Precedes reports whether a sorts before b in the feed (newer first).
func Precedes(a, b Key) bool {
	if !a.At.Equal(b.At) {
		return a.At.After(b.At)
	}
	return a.ID > b.ID
}

// Beyond reports whether k belongs to a page that starts after cursor p.
func Beyond(k Key, p cursor.Position) bool {
	if k.At.Equal(p.At) {
		return k.ID < p.ID
	}
	return k.At.Before(p.At)
}

// ClampLimit bounds a requested page size to [1, max]. Non-positive values
// select def.
func ClampLimit(n, def, max int) int {
	if def <= 0 {
		def = DefaultPageSize
	}
	if max <= 0 {
		max = MaxPageSize
	}
	if def > max {
		def = max
	}
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Sort orders items in place by the feed order.
func Sort[T Keyed](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return Precedes(items[i].OrderKey(), items[j].OrderKey())
	})
}

// Page selects up to limit items after the cursor from an unordered
// collection. It does not modify items.
func Page[T Keyed](items []T, after *cursor.Position, limit int) ([]T, *string) {
	sorted := make([]T, 0, len(items))
	for _, it := range items {
		if after != nil && !Beyond(it.OrderKey(), *after) {
			continue
		}
		sorted = append(sorted, it)
	}
	Sort(sorted)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, Next(sorted, limit)
}

// Next returns the cursor for the page following page, or nil when the page
// is short. A full final page costs the client one extra empty fetch.
func Next[T Keyed](page []T, limit int) *string {
	if limit <= 0 || len(page) < limit {
		return nil
	}
	k := page[len(page)-1].OrderKey()
	next := cursor.Encode(k.At, k.ID)
	return &next
}
