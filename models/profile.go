package models

import "time"

type User struct {
	ID           string
	Handle       string
	Email        string
	PasswordHash string
	FullName     string
	Bio          string
	Link         string
	Avatar       string
	Cover        string
	Verified     bool
	CreatedAt    time.Time
}

// ProfileUpdate carries the editable profile fields. Nil fields are left as is.
type ProfileUpdate struct {
	FullName *string
	Bio      *string
	Link     *string
	Avatar   *string
	Cover    *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.Bio == nil && u.Link == nil && u.Avatar == nil && u.Cover == nil
}

// FollowCounts are the sizes of a user's two follow sets.
type FollowCounts struct {
	Followers int
	Following int
}
