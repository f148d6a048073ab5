package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chirp/apperr"
	"chirp/models"
	"chirp/ordering"
)

// postView is the shape produced by viewStage.
type postView struct {
	ID           primitive.ObjectID  `bson:"_id"`
	AuthorID     primitive.ObjectID  `bson:"authorId"`
	Text         string              `bson:"text"`
	ParentPostID *primitive.ObjectID `bson:"parentPostId"`
	CreatedAt    time.Time           `bson:"createdAt"`
	ViewCount    int                 `bson:"viewCount"`
	LikeCount    int                 `bson:"likeCount"`
	RepostCount  int                 `bson:"repostCount"`
	ReplyCount   int                 `bson:"replyCount"`
	Liked        bool                `bson:"liked"`
}

func (v postView) model() models.PostView {
	pv := models.PostView{
		Post: models.Post{
			ID:        v.ID.Hex(),
			AuthorID:  v.AuthorID.Hex(),
			Text:      v.Text,
			CreatedAt: v.CreatedAt.UTC(),
			ViewCount: v.ViewCount,
		},
		LikeCount:   v.LikeCount,
		RepostCount: v.RepostCount,
		ReplyCount:  v.ReplyCount,
		Liked:       v.Liked,
	}
	if v.ParentPostID != nil {
		parent := v.ParentPostID.Hex()
		pv.ParentPostID = &parent
	}
	return pv
}

// viewStage computes counts from the embedded arrays and the viewer's liked
// flag without shipping the arrays themselves.
func viewStage(viewer string) bson.D {
	var liked any = bson.D{{"$literal", false}}
	if oid, err := primitive.ObjectIDFromHex(viewer); err == nil {
		liked = inArray(oid, "$likes")
	}
	return bson.D{{"$project", bson.D{
		{"authorId", 1},
		{"text", 1},
		{"parentPostId", 1},
		{"createdAt", 1},
		{"viewCount", 1},
		{"likeCount", sizeOf("$likes")},
		{"repostCount", sizeOf("$reposts")},
		{"replyCount", sizeOf("$comments")},
		{"liked", liked},
	}}}
}

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	author, err := objectID(p.AuthorID, apperr.ErrUserNotFound)
	if err != nil {
		return err
	}
	if err := exists(ctx, s.users, author, apperr.ErrUserNotFound); err != nil {
		return err
	}

	doc := postDoc{
		AuthorID:  author,
		Text:      p.Text,
		CreatedAt: p.CreatedAt.UTC(),
		ViewCount: p.ViewCount,
		Likes:     []primitive.ObjectID{},
		Reposts:   []repostDoc{},
		Comments:  []commentDoc{},
	}
	if p.ParentPostID != nil {
		parent, err := objectID(*p.ParentPostID, apperr.ErrPostNotFound)
		if err != nil {
			return err
		}
		if err := exists(ctx, s.posts, parent, apperr.ErrPostNotFound); err != nil {
			return err
		}
		doc.ParentPostID = &parent
	}
	if doc.ID, err = newIDFor(p.ID); err != nil {
		return err
	}

	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	p.ID = doc.ID.Hex()
	return nil
}

func (s *Store) GetPost(ctx context.Context, id, viewer string) (*models.PostView, error) {
	oid, err := objectID(id, apperr.ErrPostNotFound)
	if err != nil {
		return nil, err
	}

	views, err := s.aggregateViews(ctx, mongo.Pipeline{
		{{"$match", bson.D{{"_id", oid}}}},
		{{"$limit", 1}},
		viewStage(viewer),
	})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperr.ErrPostNotFound
	}
	return &views[0], nil
}

// ListPosts pages with the keyset (createdAt, _id). A cursor whose id is not
// an ObjectID cannot have come from this store and is ignored.
func (s *Store) ListPosts(ctx context.Context, q ordering.Query) ([]models.PostView, error) {
	match := bson.D{}
	if q.AuthorID != "" {
		author, err := primitive.ObjectIDFromHex(q.AuthorID)
		if err != nil {
			return []models.PostView{}, nil
		}
		match = append(match, bson.E{"authorId", author})
	}
	if q.After != nil {
		if after, err := primitive.ObjectIDFromHex(q.After.ID); err == nil {
			at := q.After.At.UTC()
			match = append(match, bson.E{"$or", bson.A{
				bson.D{{"createdAt", bson.D{{"$lt", at}}}},
				bson.D{{"createdAt", at}, {"_id", bson.D{{"$lt", after}}}},
			}})
		}
	}

	return s.aggregateViews(ctx, mongo.Pipeline{
		{{"$match", match}},
		{{"$sort", bson.D{{"createdAt", -1}, {"_id", -1}}}},
		{{"$limit", int64(q.Limit)}},
		viewStage(q.Viewer),
	})
}

func (s *Store) aggregateViews(ctx context.Context, pipeline mongo.Pipeline) ([]models.PostView, error) {
	cursor, err := s.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []postView
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding posts: %w", err)
	}
	out := make([]models.PostView, len(docs))
	for i, d := range docs {
		out[i] = d.model()
	}
	return out, nil
}

func (s *Store) IncrementViews(ctx context.Context, id string) error {
	oid, err := objectID(id, apperr.ErrPostNotFound)
	if err != nil {
		return err
	}
	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"viewCount": 1}})
	if err != nil {
		return fmt.Errorf("incrementing views: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrPostNotFound
	}
	return nil
}

// AddComment appends with a single $push and reads the new array length
// from the same operation.
func (s *Store) AddComment(ctx context.Context, c *models.Comment) (int, error) {
	post, err := objectID(c.PostID, apperr.ErrPostNotFound)
	if err != nil {
		return 0, err
	}
	author, err := objectID(c.AuthorID, apperr.ErrUserNotFound)
	if err != nil {
		return 0, err
	}
	id, err := newIDFor(c.ID)
	if err != nil {
		return 0, err
	}

	doc := commentDoc{ID: id, AuthorID: author, Text: c.Text, CreatedAt: c.CreatedAt.UTC()}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"comments._id": 1})

	var updated struct {
		Comments []struct {
			ID primitive.ObjectID `bson:"_id"`
		} `bson:"comments"`
	}
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": post}, bson.M{"$push": bson.M{"comments": doc}}, opts).Decode(&updated)
	if isNoDocuments(err) {
		return 0, apperr.ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("appending comment: %w", err)
	}
	c.ID = id.Hex()
	return len(updated.Comments), nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	oid, err := objectID(postID, apperr.ErrPostNotFound)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Comments []commentDoc `bson:"comments"`
	}
	opts := options.FindOne().SetProjection(bson.M{"comments": 1})
	err = s.posts.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc)
	if isNoDocuments(err) {
		return nil, apperr.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading comments: %w", err)
	}

	out := make([]models.Comment, len(doc.Comments))
	for i, c := range doc.Comments {
		out[i] = models.Comment{
			ID:        c.ID.Hex(),
			PostID:    postID,
			AuthorID:  c.AuthorID.Hex(),
			Text:      c.Text,
			CreatedAt: c.CreatedAt.UTC(),
		}
	}
	return out, nil
}
