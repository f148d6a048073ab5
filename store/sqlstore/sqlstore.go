// Package sqlstore implements store.Store on a relational database through
// gorm. Likes, reposts and follows are join tables keyed by (target, actor),
// so membership writes are single idempotent statements and a follow is one
// row read from either side.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chirp/apperr"
	"chirp/models"
	"chirp/ordering"
	"chirp/store"
)

type Store struct {
	db    *gorm.DB
	clock store.Clock
	ids   store.IDGenerator
}

var _ store.Store = (*Store)(nil)

// New wraps a gorm handle whose schema is already migrated.
func New(db *gorm.DB, clock store.Clock, ids store.IDGenerator) *Store {
	if clock == nil {
		clock = store.RealClock{}
	}
	if ids == nil {
		ids = store.UUIDGenerator{}
	}
	return &Store{db: db, clock: clock, ids: ids}
}

func (s *Store) ValidID(id string) bool { return s.ids.Valid(id) }

const viewColumns = `p.id, p.author_id, p.text, p.parent_post_id, p.created_at, p.view_count,
	(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS like_count,
	(SELECT COUNT(*) FROM reposts r WHERE r.post_id = p.id) AS repost_count,
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS reply_count,
	EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = ?) AS liked`

func (s *Store) views(ctx context.Context, viewer string) *gorm.DB {
	return s.db.WithContext(ctx).Table("posts AS p").Select(viewColumns, viewer)
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, "users", p.AuthorID, apperr.ErrUserNotFound); err != nil {
			return err
		}
		if p.ParentPostID != nil {
			if err := exists(tx, "posts", *p.ParentPostID, apperr.ErrPostNotFound); err != nil {
				return err
			}
		}
		if p.ID == "" {
			p.ID = s.ids.New()
		}
		row := postRow{
			ID:           p.ID,
			AuthorID:     p.AuthorID,
			Text:         p.Text,
			ParentPostID: p.ParentPostID,
			CreatedAt:    toMillis(p.CreatedAt),
			ViewCount:    p.ViewCount,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("inserting post: %w", err)
		}
		return nil
	})
}

func (s *Store) GetPost(ctx context.Context, id, viewer string) (*models.PostView, error) {
	var rows []postViewRow
	if err := s.views(ctx, viewer).Where("p.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading post: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperr.ErrPostNotFound
	}
	v := rows[0].model()
	return &v, nil
}

func (s *Store) ListPosts(ctx context.Context, q ordering.Query) ([]models.PostView, error) {
	tx := s.views(ctx, q.Viewer)
	if q.AuthorID != "" {
		tx = tx.Where("p.author_id = ?", q.AuthorID)
	}
	if q.After != nil {
		ms := toMillis(q.After.At)
		tx = tx.Where("(p.created_at < ? OR (p.created_at = ? AND p.id < ?))", ms, ms, q.After.ID)
	}

	var rows []postViewRow
	err := tx.Order("p.created_at DESC, p.id DESC").Limit(q.Limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	out := make([]models.PostView, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&postRow{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("incrementing views: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrPostNotFound
	}
	return nil
}

func (s *Store) AddComment(ctx context.Context, c *models.Comment) (int, error) {
	var replies int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, "posts", c.PostID, apperr.ErrPostNotFound); err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = s.ids.New()
		}
		row := commentRow{
			ID:        c.ID,
			PostID:    c.PostID,
			AuthorID:  c.AuthorID,
			Text:      c.Text,
			CreatedAt: toMillis(c.CreatedAt),
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return apperr.ErrUserNotFound
			}
			return fmt.Errorf("inserting comment: %w", err)
		}
		return tx.Model(&commentRow{}).Where("post_id = ?", c.PostID).Count(&replies).Error
	})
	if err != nil {
		return 0, err
	}
	return int(replies), nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)
	if err := exists(db, "posts", postID, apperr.ErrPostNotFound); err != nil {
		return nil, err
	}

	var rows []commentRow
	if err := db.Where("post_id = ?", postID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	out := make([]models.Comment, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkUnique(tx, u); err != nil {
			return err
		}
		if u.ID == "" {
			u.ID = s.ids.New()
		}
		row := newUserRow(u)
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost a race with a concurrent signup.
				if uerr := s.checkUnique(tx, u); uerr != nil {
					return uerr
				}
				return apperr.ErrHandleTaken
			}
			return fmt.Errorf("inserting user: %w", err)
		}
		return nil
	})
}

func (s *Store) checkUnique(tx *gorm.DB, u *models.User) error {
	var n int64
	if err := tx.Model(&userRow{}).Where("handle = ?", u.Handle).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.ErrHandleTaken
	}
	if err := tx.Model(&userRow{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.ErrEmailTaken
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	return s.findUser(ctx, "handle = ?", handle)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *Store) findUser(ctx context.Context, cond string, arg string) (*models.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where(cond, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	u := row.model()
	return &u, nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	ids = store.Dedupe(ids)
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []userRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.model()
	}
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	cols := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			cols[col] = *v
		}
	}
	set("full_name", upd.FullName)
	set("bio", upd.Bio)
	set("link", upd.Link)
	set("avatar", upd.Avatar)
	set("cover", upd.Cover)

	if len(cols) > 0 {
		res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return nil, fmt.Errorf("updating profile: %w", res.Error)
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) FollowCounts(ctx context.Context, id string) (models.FollowCounts, error) {
	db := s.db.WithContext(ctx)
	if err := exists(db, "users", id, apperr.ErrUserNotFound); err != nil {
		return models.FollowCounts{}, err
	}

	var followers, following int64
	if err := db.Table("follows").Where("followee_id = ?", id).Count(&followers).Error; err != nil {
		return models.FollowCounts{}, fmt.Errorf("counting followers: %w", err)
	}
	if err := db.Table("follows").Where("follower_id = ?", id).Count(&following).Error; err != nil {
		return models.FollowCounts{}, fmt.Errorf("counting following: %w", err)
	}
	return models.FollowCounts{Followers: int(followers), Following: int(following)}, nil
}

// ReconcileFollows has nothing to repair: a follow is a single row.
func (s *Store) ReconcileFollows(context.Context) (int, error) { return 0, nil }

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// exists returns notFound unless table has a row with the given id.
func exists(tx *gorm.DB, table, id string, notFound error) error {
	var n int64
	if err := tx.Table(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("checking %s: %w", table, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
