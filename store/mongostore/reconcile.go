package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReconcileFollows makes followers agree with following. Following is the
// side written first, so it is taken as the source of truth: missing
// follower entries are added and follower entries with no matching
// following entry are removed.
func (s *Store) ReconcileFollows(ctx context.Context) (int, error) {
	added, err := s.addMissingFollowers(ctx)
	if err != nil {
		return added, err
	}
	removed, err := s.removeStaleFollowers(ctx)
	return added + removed, err
}

func (s *Store) addMissingFollowers(ctx context.Context) (int, error) {
	cursor, err := s.users.Find(ctx, bson.M{"following.0": bson.M{"$exists": true}},
		options.Find().SetProjection(bson.M{"following": 1}))
	if err != nil {
		return 0, fmt.Errorf("scanning following: %w", err)
	}
	defer cursor.Close(ctx)

	fixed := 0
	for cursor.Next(ctx) {
		var doc struct {
			ID        primitive.ObjectID   `bson:"_id"`
			Following []primitive.ObjectID `bson:"following"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return fixed, fmt.Errorf("decoding user: %w", err)
		}
		for _, followee := range doc.Following {
			res, err := s.users.UpdateOne(ctx,
				bson.M{"_id": followee, "followers": bson.M{"$ne": doc.ID}},
				bson.M{"$addToSet": bson.M{"followers": doc.ID}})
			if err != nil {
				return fixed, fmt.Errorf("adding follower: %w", err)
			}
			fixed += int(res.ModifiedCount)
		}
	}
	return fixed, cursor.Err()
}

func (s *Store) removeStaleFollowers(ctx context.Context) (int, error) {
	cursor, err := s.users.Find(ctx, bson.M{"followers.0": bson.M{"$exists": true}},
		options.Find().SetProjection(bson.M{"followers": 1}))
	if err != nil {
		return 0, fmt.Errorf("scanning followers: %w", err)
	}
	defer cursor.Close(ctx)

	fixed := 0
	for cursor.Next(ctx) {
		var doc struct {
			ID        primitive.ObjectID   `bson:"_id"`
			Followers []primitive.ObjectID `bson:"followers"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return fixed, fmt.Errorf("decoding user: %w", err)
		}
		for _, follower := range doc.Followers {
			n, err := s.users.CountDocuments(ctx, bson.M{"_id": follower, "following": doc.ID})
			if err != nil {
				return fixed, fmt.Errorf("checking following: %w", err)
			}
			if n > 0 {
				continue
			}
			res, err := s.users.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$pull": bson.M{"followers": follower}})
			if err != nil {
				return fixed, fmt.Errorf("removing follower: %w", err)
			}
			fixed += int(res.ModifiedCount)
		}
	}
	return fixed, cursor.Err()
}
