package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chirp/apperr"
	"chirp/toggle"
)

// edge maps a relation onto its join table.
type edge struct {
	table     string
	targetCol string
	actorCol  string
	// parent is the table the target id lives in.
	parent   string
	notFound error
}

func edgeFor(rel toggle.Relation) (edge, error) {
	switch rel {
	case toggle.Like:
		return edge{"likes", "post_id", "user_id", "posts", apperr.ErrPostNotFound}, nil
	case toggle.Repost:
		return edge{"reposts", "post_id", "user_id", "posts", apperr.ErrPostNotFound}, nil
	case toggle.Follow:
		return edge{"follows", "followee_id", "follower_id", "users", apperr.ErrUserNotFound}, nil
	}
	return edge{}, fmt.Errorf("sqlstore: unknown relation %s", rel)
}

func (e edge) where(tx *gorm.DB, target, actor string) *gorm.DB {
	return tx.Table(e.table).Where(e.targetCol+" = ? AND "+e.actorCol+" = ?", target, actor)
}

func (s *Store) AddMember(ctx context.Context, rel toggle.Relation, target, actor string) error {
	e, err := edgeFor(rel)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, e.parent, target, e.notFound); err != nil {
			return err
		}
		err := tx.Table(e.table).Clauses(clause.OnConflict{DoNothing: true}).Create(map[string]any{
			e.targetCol:  target,
			e.actorCol:   actor,
			"created_at": toMillis(s.clock.Now()),
		}).Error
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("adding %s: %w", rel, err)
		}
		return nil
	})
}

func (s *Store) RemoveMember(ctx context.Context, rel toggle.Relation, target, actor string) error {
	e, err := edgeFor(rel)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, e.parent, target, e.notFound); err != nil {
			return err
		}
		if rel == toggle.Follow {
			if err := exists(tx, "users", actor, apperr.ErrUserNotFound); err != nil {
				return err
			}
		}
		del := "DELETE FROM " + e.table + " WHERE " + e.targetCol + " = ? AND " + e.actorCol + " = ?"
		if err := tx.Exec(del, target, actor).Error; err != nil {
			return fmt.Errorf("removing %s: %w", rel, err)
		}
		return nil
	})
}

func (s *Store) IsMember(ctx context.Context, rel toggle.Relation, target, actor string) (bool, error) {
	e, err := edgeFor(rel)
	if err != nil {
		return false, err
	}
	db := s.db.WithContext(ctx)
	if err := exists(db, e.parent, target, e.notFound); err != nil {
		return false, err
	}
	var n int64
	if err := e.where(db, target, actor).Count(&n).Error; err != nil {
		return false, fmt.Errorf("reading %s: %w", rel, err)
	}
	return n > 0, nil
}

func (s *Store) CountMembers(ctx context.Context, rel toggle.Relation, target string) (int, error) {
	e, err := edgeFor(rel)
	if err != nil {
		return 0, err
	}
	db := s.db.WithContext(ctx)
	if err := exists(db, e.parent, target, e.notFound); err != nil {
		return 0, err
	}
	var n int64
	if err := db.Table(e.table).Where(e.targetCol+" = ?", target).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting %s: %w", rel, err)
	}
	return int(n), nil
}
