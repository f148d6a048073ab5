// Package mongostore implements store.Store on MongoDB. Likes, reposts and
// comments are arrays embedded in the post document; following and
// followers are arrays embedded in the user document.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chirp/apperr"
	"chirp/store"
)

const (
	UsersCollection = "users"
	PostsCollection = "posts"
)

type userDoc struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Handle       string               `bson:"handle"`
	Email        string               `bson:"email"`
	PasswordHash string               `bson:"passwordHash"`
	FullName     string               `bson:"fullName"`
	Bio          string               `bson:"bio"`
	Link         string               `bson:"link"`
	Avatar       string               `bson:"avatar"`
	Cover        string               `bson:"cover"`
	Verified     bool                 `bson:"verified"`
	Following    []primitive.ObjectID `bson:"following"`
	Followers    []primitive.ObjectID `bson:"followers"`
	CreatedAt    time.Time            `bson:"createdAt"`
}

type repostDoc struct {
	User      primitive.ObjectID `bson:"user"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type commentDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	AuthorID  primitive.ObjectID `bson:"authorId"`
	Text      string             `bson:"text"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type postDoc struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	AuthorID     primitive.ObjectID   `bson:"authorId"`
	Text         string               `bson:"text"`
	ParentPostID *primitive.ObjectID  `bson:"parentPostId,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt"`
	ViewCount    int                  `bson:"viewCount"`
	Likes        []primitive.ObjectID `bson:"likes"`
	Reposts      []repostDoc          `bson:"reposts"`
	Comments     []commentDoc         `bson:"comments"`
}

type Options struct {
	Clock store.Clock
	// Transactions runs both halves of a follow in one multi-document
	// transaction. Requires a replica set or sharded cluster.
	Transactions bool
}

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	posts  *mongo.Collection
	clock  store.Clock
	txn    bool
}

var _ store.Store = (*Store)(nil)

func New(client *mongo.Client, db *mongo.Database, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = store.RealClock{}
	}
	return &Store{
		client: client,
		users:  db.Collection(UsersCollection),
		posts:  db.Collection(PostsCollection),
		clock:  opts.Clock,
		txn:    opts.Transactions,
	}
}

// EnsureIndexes creates the unique user indexes and the feed indexes. It is
// safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{"handle", 1}}, Options: options.Index().SetUnique(true).SetName("handle_1")},
		{Keys: bson.D{{"email", 1}}, Options: options.Index().SetUnique(true).SetName("email_1")},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	_, err = db.Collection(PostsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{"createdAt", -1}, {"_id", -1}}},
		{Keys: bson.D{{"authorId", 1}, {"createdAt", -1}, {"_id", -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating post indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ValidID(id string) bool { return primitive.IsValidObjectID(id) }

// objectID parses a hex id. Anything that is not an ObjectID cannot name a
// document, so it is reported as notFound.
func objectID(id string, notFound error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return oid, nil
}

func newIDFor(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NewObjectID(), nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.ErrInvalidID
	}
	return oid, nil
}

func exists(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, notFound error) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("checking %s: %w", coll.Name(), err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// sizeOf is $size that treats a missing array as empty.
func sizeOf(field string) bson.D {
	return bson.D{{"$size", bson.D{{"$ifNull", bson.A{field, bson.A{}}}}}}
}

func inArray(v any, field string) bson.D {
	return bson.D{{"$in", bson.A{v, bson.D{{"$ifNull", bson.A{field, bson.A{}}}}}}}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
