// Package cursor encodes feed positions as opaque "<timestamp>|<id>" tokens.
package cursor

import (
	"strings"
	"time"
)

// Layout is ISO-8601 with millisecond precision in UTC.
const Layout = "2006-01-02T15:04:05.000Z"

const sep = "|"

// Position is the (created_at, id) of the last record a client has seen.
type Position struct {
	At time.Time
	ID string
}

// Encode returns the wire form of a position. id must not contain "|".
func Encode(at time.Time, id string) string {
	return at.UTC().Format(Layout) + sep + id
}

// String implements fmt.Stringer using the wire form.
func (p Position) String() string {
	return Encode(p.At, p.ID)
}

// Decode parses a cursor. A missing part or an unparseable timestamp returns
// ok == false, which callers treat as "start from the first page".
func Decode(s string) (Position, bool) {
	ts, id, found := strings.Cut(s, sep)
	if !found || ts == "" || id == "" {
		return Position{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Position{}, false
	}
	return Position{At: at.UTC(), ID: id}, true
}

// Parse is Decode returning nil for "no cursor".
func Parse(s string) *Position {
	p, ok := Decode(s)
	if !ok {
		return nil
	}
	return &p
}
