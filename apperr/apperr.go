// Package apperr defines the error values surfaced to API callers. Each error
// carries a machine-readable code that handlers return verbatim.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a client-facing failure. Anything that is not an *Error is
// reported as an internal error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so sentinel values compare by identity of meaning.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func Unauthorized(code, msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: msg}
}

var (
	ErrEmptyText          = Validation("empty_text", "text is empty after normalization")
	ErrTextTooLong        = Validation("text_too_long", "text exceeds 280 characters")
	ErrInvalidID          = Validation("invalid_id", "identifier is not valid")
	ErrCannotFollowSelf   = Validation("cannot_follow_self", "users cannot follow themselves")
	ErrInvalidHandle      = Validation("invalid_handle", "handle must be 3-15 characters of a-z, 0-9 or _")
	ErrPostNotFound       = NotFound("post_not_found", "post does not exist")
	ErrUserNotFound       = NotFound("user_not_found", "user does not exist")
	ErrHandleTaken        = Conflict("handle_taken", "handle is already in use")
	ErrEmailTaken         = Conflict("email_taken", "email is already in use")
	ErrInvalidCredentials = Unauthorized("invalid_credentials", "invalid email or password")
)

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
