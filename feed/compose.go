package feed

import (
	"context"

	"chirp/apperr"
	"chirp/cursor"
	"chirp/models"
	"chirp/sanitize"
	"chirp/store"
)

// CreatePost validates and normalizes text, then stores a post stamped with
// the service clock. parentID may be empty.
func (s *Service) CreatePost(ctx context.Context, authorID string, text any, parentID string) (Item, error) {
	if err := s.checkIDs(authorID, parentID); err != nil {
		return Item{}, err
	}
	body, err := sanitize.ValidateText(text)
	if err != nil {
		return Item{}, err
	}

	p := &models.Post{
		AuthorID:  authorID,
		Text:      body,
		CreatedAt: store.Stamp(s.opts.Clock),
	}
	if parentID != "" {
		p.ParentPostID = &parentID
	}
	if err := s.posts.CreatePost(ctx, p); err != nil {
		return Item{}, err
	}

	items, err := s.assemble(ctx, []models.PostView{{Post: *p}})
	if err != nil {
		return Item{}, err
	}
	return items[0], nil
}

// AddComment appends a comment and returns it with the post's new reply count.
func (s *Service) AddComment(ctx context.Context, authorID, postID string, text any) (CommentItem, int, error) {
	if postID == "" {
		return CommentItem{}, 0, apperr.ErrInvalidID
	}
	if err := s.checkIDs(authorID, postID); err != nil {
		return CommentItem{}, 0, err
	}
	body, err := sanitize.ValidateText(text)
	if err != nil {
		return CommentItem{}, 0, err
	}

	c := &models.Comment{
		PostID:    postID,
		AuthorID:  authorID,
		Text:      body,
		CreatedAt: store.Stamp(s.opts.Clock),
	}
	replies, err := s.posts.AddComment(ctx, c)
	if err != nil {
		return CommentItem{}, 0, err
	}

	authors, err := s.lookup(ctx, []string{authorID})
	if err != nil {
		return CommentItem{}, 0, err
	}
	return CommentItem{
		ID:           c.ID,
		Text:         c.Text,
		CreatedAt:    c.CreatedAt.UTC().Format(cursor.Layout),
		RelativeTime: RelativeTime(s.opts.Clock.Now(), c.CreatedAt),
		User:         summarize(authors, authorID),
	}, replies, nil
}
