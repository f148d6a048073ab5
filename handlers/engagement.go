package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chirp/apperr"
	"chirp/sanitize"
	"chirp/toggle"
)

// stateKeys names the response fields for a relation's membership and count.
var stateKeys = map[toggle.Relation][2]string{
	toggle.Like:   {"liked", "like_count"},
	toggle.Repost: {"reposted", "repost_count"},
	toggle.Follow: {"following", "followers_count"},
}

// target resolves the route parameter a relation acts on: a post id for
// likes and reposts, a handle for follows.
func target(ctx context.Context, c *gin.Context, rel toggle.Relation) (string, error) {
	if rel != toggle.Follow {
		return c.Param("id"), nil
	}
	handle, err := sanitize.Handle(c.Param("handle"))
	if err != nil {
		return "", apperr.ErrUserNotFound
	}
	user, err := db.GetUserByHandle(ctx, handle)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func respondState(c *gin.Context, rel toggle.Relation, st toggle.State) {
	keys := stateKeys[rel]
	c.JSON(http.StatusOK, gin.H{keys[0]: st.Active, keys[1]: st.Count})
}

// SetRelation returns a handler that makes the viewer a member (desired) or
// not a member of rel on the route's target. Repeating it is harmless.
func SetRelation(rel toggle.Relation, desired bool) gin.HandlerFunc {
	name := "Set" + rel.String()
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		id, err := target(ctx, c, rel)
		if err != nil {
			respondError(c, name, err)
			return
		}
		st, err := toggles.Set(ctx, viewerID(c), id, rel, desired)
		if err != nil {
			respondError(c, name, err)
			return
		}
		respondState(c, rel, st)
	}
}

// ToggleRelation returns a handler that flips the viewer's membership.
func ToggleRelation(rel toggle.Relation) gin.HandlerFunc {
	name := "Toggle" + rel.String()
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		id, err := target(ctx, c, rel)
		if err != nil {
			respondError(c, name, err)
			return
		}
		st, err := toggles.Toggle(ctx, viewerID(c), id, rel)
		if err != nil {
			respondError(c, name, err)
			return
		}
		respondState(c, rel, st)
	}
}
