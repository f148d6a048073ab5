package models

import (
	"time"

	"chirp/ordering"
)

// Post is the storage-agnostic shape of a post as created. Membership sets
// (likes, reposts) and comments live in the store; their sizes are exposed
// on PostView.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	Text         string    `json:"text"`
	ParentPostID *string   `json:"parentPostId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	ViewCount    int       `json:"viewCount"`
}

// OrderKey places the post in the feed order.
func (p Post) OrderKey() ordering.Key {
	return ordering.Key{At: p.CreatedAt, ID: p.ID}
}

// PostView is a post with its counts computed from the underlying sets, plus
// the viewer's like membership when a viewer was given.
type PostView struct {
	Post
	LikeCount   int
	RepostCount int
	ReplyCount  int
	Liked       bool
}

// Repost is one entry of a post's ordered repost list.
type Repost struct {
	UserID    string
	CreatedAt time.Time
}

// Comment is owned by its parent post and stored in insertion order.
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

func (c Comment) Timestamp() time.Time { return c.CreatedAt }
