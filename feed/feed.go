// Package feed turns store listings into the public item shape with one
// batched author lookup per page.
package feed

import (
	"context"
	"fmt"

	"chirp/apperr"
	"chirp/cursor"
	"chirp/models"
	"chirp/ordering"
	"chirp/sanitize"
	"chirp/store"
)

type Posts interface {
	// ValidID reports whether id is well-formed for the store.
	ValidID(id string) bool
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id, viewer string) (*models.PostView, error)
	ListPosts(ctx context.Context, q ordering.Query) ([]models.PostView, error)
	IncrementViews(ctx context.Context, id string) error
	AddComment(ctx context.Context, c *models.Comment) (int, error)
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
}

type Users interface {
	GetUserByHandle(ctx context.Context, handle string) (*models.User, error)
	UsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// UserSummary is the author block embedded in every item.
type UserSummary struct {
	FullName string  `json:"fullName"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
	Verified bool    `json:"verified"`
}

// Item is one post in a listing. liked and view_count are always present.
type Item struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	CreatedAt    string      `json:"created_at"`
	RelativeTime string      `json:"relative_time"`
	ParentPostID *string     `json:"parent_post_id"`
	User         UserSummary `json:"user"`
	LikeCount    int         `json:"like_count"`
	Liked        bool        `json:"liked"`
	RepostCount  int         `json:"repost_count"`
	ReplyCount   int         `json:"reply_count"`
	ViewCount    int         `json:"view_count"`
}

type Page struct {
	Items      []Item  `json:"items"`
	NextCursor *string `json:"nextCursor"`
}

type CommentItem struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	CreatedAt    string      `json:"created_at"`
	RelativeTime string      `json:"relative_time"`
	User         UserSummary `json:"user"`
}

// CommentPage uses a numeric offset cursor, unlike Page. The two are not
// interchangeable.
type CommentPage struct {
	ReplyCount int           `json:"reply_count"`
	Items      []CommentItem `json:"items"`
	NextCursor *int          `json:"nextCursor"`
}

type Options struct {
	PageSize    int
	MaxPageSize int
	Clock       store.Clock
}

type Service struct {
	posts Posts
	users Users
	opts  Options
}

func NewService(posts Posts, users Users, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = ordering.DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = ordering.MaxPageSize
	}
	if opts.Clock == nil {
		opts.Clock = store.RealClock{}
	}
	return &Service{posts: posts, users: users, opts: opts}
}

// Feed returns the global feed page after rawCursor. A malformed cursor
// starts from the newest post.
func (s *Service) Feed(ctx context.Context, rawCursor, viewer string, limit int) (Page, error) {
	return s.list(ctx, "", rawCursor, viewer, limit)
}

// Timeline is Feed restricted to one author.
func (s *Service) Timeline(ctx context.Context, handle, rawCursor, viewer string, limit int) (Page, error) {
	handle, err := sanitize.Handle(handle)
	if err != nil {
		return Page{}, apperr.ErrUserNotFound
	}
	author, err := s.users.GetUserByHandle(ctx, handle)
	if err != nil {
		return Page{}, err
	}
	return s.list(ctx, author.ID, rawCursor, viewer, limit)
}

func (s *Service) list(ctx context.Context, authorID, rawCursor, viewer string, limit int) (Page, error) {
	q := ordering.Query{
		AuthorID: authorID,
		After:    cursor.Parse(rawCursor),
		Limit:    ordering.ClampLimit(limit, s.opts.PageSize, s.opts.MaxPageSize),
		Viewer:   viewer,
	}
	views, err := s.posts.ListPosts(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("listing posts: %w", err)
	}

	items, err := s.assemble(ctx, views)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, NextCursor: ordering.Next(views, q.Limit)}, nil
}

// Post returns a single item and counts the view.
func (s *Service) Post(ctx context.Context, id, viewer string) (Item, error) {
	if !s.posts.ValidID(id) {
		return Item{}, apperr.ErrInvalidID
	}
	if err := s.posts.IncrementViews(ctx, id); err != nil {
		return Item{}, err
	}
	view, err := s.posts.GetPost(ctx, id, viewer)
	if err != nil {
		return Item{}, err
	}
	items, err := s.assemble(ctx, []models.PostView{*view})
	if err != nil {
		return Item{}, err
	}
	return items[0], nil
}

// Comments lists a post's comments newest first from the offset in
// rawOffset.
func (s *Service) Comments(ctx context.Context, postID, rawOffset string, limit int) (CommentPage, error) {
	if !s.posts.ValidID(postID) {
		return CommentPage{}, apperr.ErrInvalidID
	}
	all, err := s.posts.ListComments(ctx, postID)
	if err != nil {
		return CommentPage{}, err
	}
	limit = ordering.ClampLimit(limit, s.opts.PageSize, s.opts.MaxPageSize)
	page, next := ordering.PageOffset(ordering.NewestFirst(all), ordering.ParseOffset(rawOffset), limit)

	authorIDs := make([]string, len(page))
	for i, c := range page {
		authorIDs[i] = c.AuthorID
	}
	authors, err := s.lookup(ctx, authorIDs)
	if err != nil {
		return CommentPage{}, err
	}

	now := s.opts.Clock.Now()
	items := make([]CommentItem, len(page))
	for i, c := range page {
		items[i] = CommentItem{
			ID:           c.ID,
			Text:         c.Text,
			CreatedAt:    c.CreatedAt.UTC().Format(cursor.Layout),
			RelativeTime: RelativeTime(now, c.CreatedAt),
			User:         summarize(authors, c.AuthorID),
		}
	}
	return CommentPage{ReplyCount: len(all), Items: items, NextCursor: next}, nil
}

func (s *Service) assemble(ctx context.Context, views []models.PostView) ([]Item, error) {
	authorIDs := make([]string, len(views))
	for i, v := range views {
		authorIDs[i] = v.AuthorID
	}
	authors, err := s.lookup(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	now := s.opts.Clock.Now()
	items := make([]Item, len(views))
	for i, v := range views {
		items[i] = Item{
			ID:           v.ID,
			Text:         v.Text,
			CreatedAt:    v.CreatedAt.UTC().Format(cursor.Layout),
			RelativeTime: RelativeTime(now, v.CreatedAt),
			ParentPostID: v.ParentPostID,
			User:         summarize(authors, v.AuthorID),
			LikeCount:    v.LikeCount,
			Liked:        v.Liked,
			RepostCount:  v.RepostCount,
			ReplyCount:   v.ReplyCount,
			ViewCount:    v.ViewCount,
		}
	}
	return items, nil
}

// checkIDs fails with apperr.ErrInvalidID unless every non-empty id is
// well-formed.
func (s *Service) checkIDs(ids ...string) error {
	for _, id := range ids {
		if id != "" && !s.posts.ValidID(id) {
			return apperr.ErrInvalidID
		}
	}
	return nil
}

// lookup resolves all distinct authors of a page in one call.
func (s *Service) lookup(ctx context.Context, ids []string) (map[string]models.User, error) {
	ids = store.Dedupe(ids)
	if len(ids) == 0 {
		return map[string]models.User{}, nil
	}
	users, err := s.users.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("looking up authors: %w", err)
	}
	return users, nil
}

func summarize(users map[string]models.User, id string) UserSummary {
	u, ok := users[id]
	if !ok {
		return UserSummary{FullName: "Unknown User", Username: "unknown"}
	}
	sum := UserSummary{FullName: u.FullName, Username: u.Handle, Verified: u.Verified}
	if sum.FullName == "" {
		sum.FullName = u.Handle
	}
	if u.Avatar != "" {
		avatar := u.Avatar
		sum.Avatar = &avatar
	}
	return sum
}
