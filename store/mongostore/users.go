package mongostore

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chirp/apperr"
	"chirp/models"
)

// userProjection leaves out the follow arrays, which can be large.
var userProjection = bson.M{"following": 0, "followers": 0}

func (d userDoc) model() models.User {
	return models.User{
		ID:           d.ID.Hex(),
		Handle:       d.Handle,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FullName:     d.FullName,
		Bio:          d.Bio,
		Link:         d.Link,
		Avatar:       d.Avatar,
		Cover:        d.Cover,
		Verified:     d.Verified,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	id, err := newIDFor(u.ID)
	if err != nil {
		return err
	}
	doc := userDoc{
		ID:           id,
		Handle:       u.Handle,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Bio:          u.Bio,
		Link:         u.Link,
		Avatar:       u.Avatar,
		Cover:        u.Cover,
		Verified:     u.Verified,
		Following:    []primitive.ObjectID{},
		Followers:    []primitive.ObjectID{},
		CreatedAt:    u.CreatedAt.UTC(),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateUserError(err)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	u.ID = id.Hex()
	return nil
}

// duplicateUserError maps a unique index violation to the field that
// collided.
func duplicateUserError(err error) error {
	if strings.Contains(err.Error(), "email_1") {
		return apperr.ErrEmailTaken
	}
	return apperr.ErrHandleTaken
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id, apperr.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"handle": handle})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter, options.FindOne().SetProjection(userProjection)).Decode(&doc)
	if isNoDocuments(err) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	u := doc.model()
	return &u, nil
}

// UsersByIDs resolves every id with one $in query.
func (s *Store) UsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]models.User, len(oids))
	if len(oids) == 0 {
		return out, nil
	}

	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find().SetProjection(userProjection))
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	for _, d := range docs {
		out[d.ID.Hex()] = d.model()
	}
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	oid, err := objectID(id, apperr.ErrUserNotFound)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	for field, v := range map[string]*string{
		"fullName": upd.FullName,
		"bio":      upd.Bio,
		"link":     upd.Link,
		"avatar":   upd.Avatar,
		"cover":    upd.Cover,
	} {
		if v != nil {
			set[field] = *v
		}
	}
	if len(set) > 0 {
		res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
		if err != nil {
			return nil, fmt.Errorf("updating profile: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, apperr.ErrUserNotFound
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) FollowCounts(ctx context.Context, id string) (models.FollowCounts, error) {
	oid, err := objectID(id, apperr.ErrUserNotFound)
	if err != nil {
		return models.FollowCounts{}, err
	}

	cursor, err := s.users.Aggregate(ctx, mongo.Pipeline{
		{{"$match", bson.D{{"_id", oid}}}},
		{{"$project", bson.D{
			{"followers", sizeOf("$followers")},
			{"following", sizeOf("$following")},
		}}},
	})
	if err != nil {
		return models.FollowCounts{}, fmt.Errorf("counting follows: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []struct {
		Followers int `bson:"followers"`
		Following int `bson:"following"`
	}
	if err := cursor.All(ctx, &counts); err != nil {
		return models.FollowCounts{}, fmt.Errorf("decoding follow counts: %w", err)
	}
	if len(counts) == 0 {
		return models.FollowCounts{}, apperr.ErrUserNotFound
	}
	return models.FollowCounts{Followers: counts[0].Followers, Following: counts[0].Following}, nil
}
