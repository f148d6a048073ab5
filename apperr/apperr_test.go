package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("liking post: %w", ErrPostNotFound)

	assert.ErrorIs(t, wrapped, ErrPostNotFound)
	assert.NotErrorIs(t, wrapped, ErrUserNotFound)
	assert.ErrorIs(t, NotFound("post_not_found", "other wording"), ErrPostNotFound)
}

func TestAs(t *testing.T) {
	e, ok := As(fmt.Errorf("outer: %w", ErrCannotFollowSelf))
	require.True(t, ok)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, "cannot_follow_self", e.Code)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindValidation, "validation"},
		{KindNotFound, "not_found"},
		{KindConflict, "conflict"},
		{KindUnauthorized, "unauthorized"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}
