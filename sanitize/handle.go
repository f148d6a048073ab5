package sanitize

import (
	"regexp"
	"strings"

	"chirp/apperr"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,15}$`)

// Handle lower-cases a user handle, strips a leading "@" and validates it.
func Handle(raw string) (string, error) {
	h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	if !handlePattern.MatchString(h) {
		return "", apperr.ErrInvalidHandle
	}
	return h, nil
}
