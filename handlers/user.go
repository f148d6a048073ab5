package handlers

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"chirp/apperr"
	"chirp/cursor"
	"chirp/models"
	"chirp/sanitize"
	"chirp/toggle"
)

type profileResponse struct {
	ID             string  `json:"id"`
	Handle         string  `json:"handle"`
	Email          string  `json:"email,omitempty"`
	FullName       string  `json:"fullName"`
	Bio            string  `json:"bio"`
	Link           string  `json:"link"`
	Avatar         string  `json:"avatar"`
	Cover          *string `json:"cover"`
	Verified       bool    `json:"verified"`
	CreatedAt      string  `json:"created_at"`
	FollowersCount int     `json:"followers_count"`
	FollowingCount int     `json:"following_count"`
	Following      bool    `json:"following"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"fullName"`
	Bio      *string `json:"bio"`
	Link     *string `json:"link"`
	Avatar   *string `json:"avatar"`
	Cover    *string `json:"cover"`
}

// profile builds the response for u as seen by viewer.
func profile(ctx context.Context, u *models.User, viewer string) (profileResponse, error) {
	counts, err := db.FollowCounts(ctx, u.ID)
	if err != nil {
		return profileResponse{}, err
	}

	resp := profileResponse{
		ID:             u.ID,
		Handle:         u.Handle,
		FullName:       u.FullName,
		Bio:            u.Bio,
		Link:           u.Link,
		Avatar:         u.Avatar,
		Verified:       u.Verified,
		CreatedAt:      u.CreatedAt.UTC().Format(cursor.Layout),
		FollowersCount: counts.Followers,
		FollowingCount: counts.Following,
	}
	if resp.Avatar == "" {
		resp.Avatar = fallbackAvatar
	}
	if u.Cover != "" {
		cover := u.Cover
		resp.Cover = &cover
	}
	if viewer != "" && viewer != u.ID {
		st, err := toggles.Get(ctx, viewer, u.ID, toggle.Follow)
		if err != nil {
			return profileResponse{}, err
		}
		resp.Following = st.Active
	}
	return resp, nil
}

func GetUserProfile(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	handle, err := sanitize.Handle(c.Param("handle"))
	if err != nil {
		respondError(c, "GetUserProfile", apperr.ErrUserNotFound)
		return
	}
	user, err := db.GetUserByHandle(ctx, handle)
	if err != nil {
		respondError(c, "GetUserProfile", err)
		return
	}
	resp, err := profile(ctx, user, viewerID(c))
	if err != nil {
		respondError(c, "GetUserProfile", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func GetMyProfile(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := db.GetUser(ctx, viewerID(c))
	if err != nil {
		respondError(c, "GetMyProfile", err)
		return
	}
	resp, err := profile(ctx, user, "")
	if err != nil {
		respondError(c, "GetMyProfile", err)
		return
	}
	resp.Email = user.Email
	c.JSON(http.StatusOK, resp)
}

func UpdateMyProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON data")
		return
	}

	if req.Bio != nil && utf8.RuneCountInString(*req.Bio) > sanitize.MaxTextLength {
		respondError(c, "UpdateMyProfile", apperr.ErrTextTooLong)
		return
	}

	upd := models.ProfileUpdate{
		FullName: normalized(req.FullName),
		Bio:      normalized(req.Bio),
		Link:     trimmed(req.Link),
		Avatar:   trimmed(req.Avatar),
		Cover:    trimmed(req.Cover),
	}
	if upd.FullName != nil && *upd.FullName == "" {
		respondError(c, "UpdateMyProfile", apperr.ErrEmptyText)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := db.UpdateProfile(ctx, viewerID(c), upd)
	if err != nil {
		respondError(c, "UpdateMyProfile", err)
		return
	}
	resp, err := profile(ctx, user, "")
	if err != nil {
		respondError(c, "UpdateMyProfile", err)
		return
	}
	resp.Email = user.Email
	c.JSON(http.StatusOK, resp)
}

func normalized(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitize.Normalize(*s)
	return &v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
