// Package store declares the persistence contract shared by the storage
// adapters: memstore (in process), mongostore (document model with embedded
// arrays) and sqlstore (relational model with join tables).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chirp/models"
	"chirp/ordering"
	"chirp/toggle"
)

type PostStore interface {
	// CreatePost assigns p.ID when empty. p.CreatedAt must already be set.
	// A non-nil ParentPostID must reference an existing post.
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id, viewer string) (*models.PostView, error)
	// ListPosts returns at most q.Limit posts in feed order after q.After.
	ListPosts(ctx context.Context, q ordering.Query) ([]models.PostView, error)
	IncrementViews(ctx context.Context, id string) error
	// AddComment appends c to its post and returns the new reply count.
	AddComment(ctx context.Context, c *models.Comment) (int, error)
	// ListComments returns the post's comments in insertion order.
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
}

type UserStore interface {
	// CreateUser assigns u.ID when empty. Handle and email are unique.
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByHandle(ctx context.Context, handle string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UsersByIDs resolves many users in one round trip. Unknown ids are
	// absent from the result.
	UsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	FollowCounts(ctx context.Context, id string) (models.FollowCounts, error)
}

// Store is everything the service layer needs from a backend.
type Store interface {
	PostStore
	UserStore
	toggle.Store

	// ReconcileFollows repairs follower/following asymmetry left by a
	// partially applied follow or unfollow and returns the number of
	// entries fixed. Backends that cannot become asymmetric return 0.
	ReconcileFollows(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// Clock abstracts time retrieval so ordering is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Stamp returns the clock's time in UTC truncated to what cursors and the
// databases can represent.
func Stamp(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Millisecond)
}

// IDGenerator abstracts id generation. Ids must never contain "|".
type IDGenerator interface {
	New() string
	// Valid reports whether id has the shape New produces.
	Valid(id string) bool
}

// UUIDGenerator produces time-ordered (version 7) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.Must(uuid.NewV7()).String() }

func (UUIDGenerator) Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Dedupe returns ids without blanks and repeats, in first-seen order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
