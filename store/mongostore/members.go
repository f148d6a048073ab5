package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"chirp/apperr"
	"chirp/store"
	"chirp/toggle"
)

func errUnknownRelation(rel toggle.Relation) error {
	return fmt.Errorf("mongostore: unknown relation %s", rel)
}

func (s *Store) AddMember(ctx context.Context, rel toggle.Relation, target, actor string) error {
	switch rel {
	case toggle.Like:
		if err := s.requireActor(ctx, target, actor); err != nil {
			return err
		}
		return s.updatePost(ctx, target, actor, func(post, user primitive.ObjectID) (bson.M, bson.M) {
			return bson.M{"_id": post}, bson.M{"$addToSet": bson.M{"likes": user}}
		})
	case toggle.Repost:
		if err := s.requireActor(ctx, target, actor); err != nil {
			return err
		}
		// Conditional push: matches only while the actor has no repost, so
		// two concurrent adds cannot both append.
		return s.updatePost(ctx, target, actor, func(post, user primitive.ObjectID) (bson.M, bson.M) {
			return bson.M{"_id": post, "reposts.user": bson.M{"$ne": user}},
				bson.M{"$push": bson.M{"reposts": repostDoc{User: user, CreatedAt: store.Stamp(s.clock)}}}
		})
	case toggle.Follow:
		return s.follow(ctx, target, actor, "$addToSet")
	}
	return errUnknownRelation(rel)
}

func (s *Store) RemoveMember(ctx context.Context, rel toggle.Relation, target, actor string) error {
	switch rel {
	case toggle.Like:
		return s.updatePost(ctx, target, actor, func(post, user primitive.ObjectID) (bson.M, bson.M) {
			return bson.M{"_id": post}, bson.M{"$pull": bson.M{"likes": user}}
		})
	case toggle.Repost:
		return s.updatePost(ctx, target, actor, func(post, user primitive.ObjectID) (bson.M, bson.M) {
			return bson.M{"_id": post}, bson.M{"$pull": bson.M{"reposts": bson.M{"user": user}}}
		})
	case toggle.Follow:
		return s.follow(ctx, target, actor, "$pull")
	}
	return errUnknownRelation(rel)
}

// requireActor checks that actor names a user before it is added to a post's
// set. A missing post is reported ahead of a missing actor.
func (s *Store) requireActor(ctx context.Context, target, actor string) error {
	post, err := objectID(target, apperr.ErrPostNotFound)
	if err != nil {
		return err
	}
	user, err := objectID(actor, apperr.ErrUserNotFound)
	if err == nil {
		err = exists(ctx, s.users, user, apperr.ErrUserNotFound)
	}
	if !errors.Is(err, apperr.ErrUserNotFound) {
		return err
	}
	if perr := exists(ctx, s.posts, post, apperr.ErrPostNotFound); perr != nil {
		return perr
	}
	return err
}

// updatePost applies one atomic update to a post. A filter that matches
// nothing is only an error when the post itself is missing.
func (s *Store) updatePost(ctx context.Context, target, actor string, build func(post, user primitive.ObjectID) (bson.M, bson.M)) error {
	post, err := objectID(target, apperr.ErrPostNotFound)
	if err != nil {
		return err
	}
	user, err := objectID(actor, apperr.ErrUserNotFound)
	if err != nil {
		return err
	}

	filter, update := build(post, user)
	res, err := s.posts.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("updating post: %w", err)
	}
	if res.MatchedCount == 0 {
		return exists(ctx, s.posts, post, apperr.ErrPostNotFound)
	}
	return nil
}

// follow writes the actor's following array, then the target's followers
// array. Without transactions a failure between the two leaves the sides
// asymmetric until ReconcileFollows runs.
func (s *Store) follow(ctx context.Context, target, actor, op string) error {
	followee, err := objectID(target, apperr.ErrUserNotFound)
	if err != nil {
		return err
	}
	follower, err := objectID(actor, apperr.ErrUserNotFound)
	if err != nil {
		return err
	}
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": bson.A{followee, follower}}})
	if err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	if n != 2 {
		return apperr.ErrUserNotFound
	}

	write := func(ctx context.Context) error {
		if _, err := s.users.UpdateOne(ctx, bson.M{"_id": follower}, bson.M{op: bson.M{"following": followee}}); err != nil {
			return fmt.Errorf("updating following: %w", err)
		}
		if _, err := s.users.UpdateOne(ctx, bson.M{"_id": followee}, bson.M{op: bson.M{"followers": follower}}); err != nil {
			return fmt.Errorf("updating followers: %w", err)
		}
		return nil
	}
	if !s.txn {
		return write(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, write(sc)
	})
	return err
}

func (s *Store) IsMember(ctx context.Context, rel toggle.Relation, target, actor string) (bool, error) {
	user, _ := primitive.ObjectIDFromHex(actor)
	var member any
	switch rel {
	case toggle.Like:
		member = inArray(user, "$likes")
	case toggle.Repost:
		member = inArray(user, "$reposts.user")
	case toggle.Follow:
		member = inArray(user, "$followers")
	default:
		return false, errUnknownRelation(rel)
	}

	var out struct {
		Value bool `bson:"value"`
	}
	if err := s.project(ctx, rel, target, member, &out); err != nil {
		return false, err
	}
	return out.Value, nil
}

func (s *Store) CountMembers(ctx context.Context, rel toggle.Relation, target string) (int, error) {
	var count any
	switch rel {
	case toggle.Like:
		count = sizeOf("$likes")
	case toggle.Repost:
		count = sizeOf("$reposts")
	case toggle.Follow:
		count = sizeOf("$followers")
	default:
		return 0, errUnknownRelation(rel)
	}

	var out struct {
		Value int `bson:"value"`
	}
	if err := s.project(ctx, rel, target, count, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

// project evaluates expr against the relation's target document and decodes
// {value: expr} into dst.
func (s *Store) project(ctx context.Context, rel toggle.Relation, target string, expr any, dst any) error {
	coll, notFound := s.posts, apperr.ErrPostNotFound
	if rel == toggle.Follow {
		coll, notFound = s.users, apperr.ErrUserNotFound
	}
	oid, err := objectID(target, notFound)
	if err != nil {
		return err
	}

	cursor, err := coll.Aggregate(ctx, mongo.Pipeline{
		{{"$match", bson.D{{"_id", oid}}}},
		{{"$project", bson.D{{"_id", 0}, {"value", expr}}}},
	})
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		return notFound
	}
	return cursor.Decode(dst)
}
