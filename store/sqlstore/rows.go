package sqlstore

import (
	"time"

	"chirp/models"
)

// Timestamps are stored as unix milliseconds so that keyset comparisons are
// plain integer comparisons in every dialect.

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Handle       string
	Email        string
	PasswordHash string
	FullName     string
	Bio          string
	Link         string
	Avatar       string
	Cover        string
	Verified     bool
	CreatedAt    int64 `gorm:"autoCreateTime:false"`
}

func (userRow) TableName() string { return "users" }

func newUserRow(u *models.User) userRow {
	return userRow{
		ID:           u.ID,
		Handle:       u.Handle,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Bio:          u.Bio,
		Link:         u.Link,
		Avatar:       u.Avatar,
		Cover:        u.Cover,
		Verified:     u.Verified,
		CreatedAt:    toMillis(u.CreatedAt),
	}
}

func (r userRow) model() models.User {
	return models.User{
		ID:           r.ID,
		Handle:       r.Handle,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FullName:     r.FullName,
		Bio:          r.Bio,
		Link:         r.Link,
		Avatar:       r.Avatar,
		Cover:        r.Cover,
		Verified:     r.Verified,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

type postRow struct {
	ID           string `gorm:"primaryKey"`
	AuthorID     string
	Text         string
	ParentPostID *string
	CreatedAt    int64 `gorm:"autoCreateTime:false"`
	ViewCount    int
}

func (postRow) TableName() string { return "posts" }

// postViewRow is the shape of viewColumns.
type postViewRow struct {
	ID           string
	AuthorID     string
	Text         string
	ParentPostID *string
	CreatedAt    int64
	ViewCount    int
	LikeCount    int
	RepostCount  int
	ReplyCount   int
	Liked        bool
}

func (r postViewRow) model() models.PostView {
	return models.PostView{
		Post: models.Post{
			ID:           r.ID,
			AuthorID:     r.AuthorID,
			Text:         r.Text,
			ParentPostID: r.ParentPostID,
			CreatedAt:    fromMillis(r.CreatedAt),
			ViewCount:    r.ViewCount,
		},
		LikeCount:   r.LikeCount,
		RepostCount: r.RepostCount,
		ReplyCount:  r.ReplyCount,
		Liked:       r.Liked,
	}
}

type commentRow struct {
	ID        string `gorm:"primaryKey"`
	PostID    string
	AuthorID  string
	Text      string
	CreatedAt int64 `gorm:"autoCreateTime:false"`
	// Seq is assigned by the database on insert.
	Seq int64 `gorm:"->"`
}

func (commentRow) TableName() string { return "comments" }

func (r commentRow) model() models.Comment {
	return models.Comment{
		ID:        r.ID,
		PostID:    r.PostID,
		AuthorID:  r.AuthorID,
		Text:      r.Text,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}
