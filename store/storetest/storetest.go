// Package storetest is a conformance suite run against every store.Store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirp/apperr"
	"chirp/cursor"
	"chirp/models"
	"chirp/ordering"
	"chirp/store"
	"chirp/toggle"
)

// Harness describes how to build an empty store for one subtest.
type Harness struct {
	New func(t *testing.T) store.Store
	// MissingID is a well-formed id that names no record.
	MissingID string
}

var base = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func at(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

// Run executes the whole suite.
func Run(t *testing.T, h Harness) {
	t.Run("ids", func(t *testing.T) { testIDs(t, h) })
	t.Run("users", func(t *testing.T) { testUsers(t, h) })
	t.Run("posts", func(t *testing.T) { testPosts(t, h) })
	t.Run("pagination", func(t *testing.T) { testPagination(t, h) })
	t.Run("comments", func(t *testing.T) { testComments(t, h) })
	t.Run("likes", func(t *testing.T) { testLikes(t, h) })
	t.Run("reposts", func(t *testing.T) { testReposts(t, h) })
	t.Run("follows", func(t *testing.T) { testFollows(t, h) })
	t.Run("concurrent likes", func(t *testing.T) { testConcurrentLikes(t, h) })
}

func mustUser(t *testing.T, s store.Store, handle string) *models.User {
	t.Helper()
	u := &models.User{
		Handle:       handle,
		Email:        handle + "@example.com",
		PasswordHash: "hash",
		FullName:     "User " + handle,
		CreatedAt:    base,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

func mustPost(t *testing.T, s store.Store, author string, ms int, text string) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: author, Text: text, CreatedAt: at(ms)}
	require.NoError(t, s.CreatePost(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p
}

func postIDs(views []models.PostView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func testIDs(t *testing.T, h Harness) {
	s := h.New(t)
	u := mustUser(t, s, "alice")
	p := mustPost(t, s, u.ID, 1, "x")

	assert.True(t, s.ValidID(u.ID))
	assert.True(t, s.ValidID(p.ID))
	assert.True(t, s.ValidID(h.MissingID))
	for _, id := range []string{"", "no|such|id", "not an id"} {
		assert.False(t, s.ValidID(id), "%q", id)
	}
}

func testUsers(t *testing.T, h Harness) {
	ctx := context.Background()

	t.Run("create and look up", func(t *testing.T) {
		s := h.New(t)
		u := mustUser(t, s, "alice")

		byID, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Handle)
		assert.Equal(t, "User alice", byID.FullName)

		byHandle, err := s.GetUserByHandle(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byHandle.ID)

		byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "hash", byEmail.PasswordHash)
	})

	t.Run("unique handle and email", func(t *testing.T) {
		s := h.New(t)
		mustUser(t, s, "alice")

		err := s.CreateUser(ctx, &models.User{Handle: "alice", Email: "other@example.com", CreatedAt: base})
		assert.ErrorIs(t, err, apperr.ErrHandleTaken)

		err = s.CreateUser(ctx, &models.User{Handle: "other", Email: "alice@example.com", CreatedAt: base})
		assert.ErrorIs(t, err, apperr.ErrEmailTaken)
	})

	t.Run("missing user", func(t *testing.T) {
		s := h.New(t)

		_, err := s.GetUser(ctx, h.MissingID)
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)

		_, err = s.GetUserByHandle(ctx, "nobody")
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	})

	t.Run("batch lookup skips unknown ids", func(t *testing.T) {
		s := h.New(t)
		a := mustUser(t, s, "alice")
		b := mustUser(t, s, "bob")

		got, err := s.UsersByIDs(ctx, []string{a.ID, h.MissingID, b.ID})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "alice", got[a.ID].Handle)
		assert.Equal(t, "bob", got[b.ID].Handle)

		empty, err := s.UsersByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("update profile", func(t *testing.T) {
		s := h.New(t)
		u := mustUser(t, s, "alice")

		bio := "birds"
		avatar := "https://img.example.com/a.png"
		got, err := s.UpdateProfile(ctx, u.ID, models.ProfileUpdate{Bio: &bio, Avatar: &avatar})
		require.NoError(t, err)
		assert.Equal(t, "birds", got.Bio)
		assert.Equal(t, avatar, got.Avatar)
		assert.Equal(t, "User alice", got.FullName)

		_, err = s.UpdateProfile(ctx, h.MissingID, models.ProfileUpdate{Bio: &bio})
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	})
}

func testPosts(t *testing.T, h Harness) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := h.New(t)
		u := mustUser(t, s, "alice")
		p := mustPost(t, s, u.ID, 100, "hello")

		got, err := s.GetPost(ctx, p.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Text)
		assert.Equal(t, u.ID, got.AuthorID)
		assert.True(t, got.CreatedAt.Equal(at(100)))
		assert.Nil(t, got.ParentPostID)
		assert.Zero(t, got.LikeCount)
		assert.Zero(t, got.RepostCount)
		assert.Zero(t, got.ReplyCount)
		assert.False(t, got.Liked)
	})

	t.Run("unknown author", func(t *testing.T) {
		s := h.New(t)
		err := s.CreatePost(ctx, &models.Post{AuthorID: h.MissingID, Text: "x", CreatedAt: at(1)})
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	})

	t.Run("reply to existing and missing parent", func(t *testing.T) {
		s := h.New(t)
		u := mustUser(t, s, "alice")
		parent := mustPost(t, s, u.ID, 1, "parent")

		reply := &models.Post{AuthorID: u.ID, Text: "reply", ParentPostID: &parent.ID, CreatedAt: at(2)}
		require.NoError(t, s.CreatePost(ctx, reply))

		got, err := s.GetPost(ctx, reply.ID, "")
		require.NoError(t, err)
		require.NotNil(t, got.ParentPostID)
		assert.Equal(t, parent.ID, *got.ParentPostID)

		missing := h.MissingID
		err = s.CreatePost(ctx, &models.Post{AuthorID: u.ID, Text: "x", ParentPostID: &missing, CreatedAt: at(3)})
		assert.ErrorIs(t, err, apperr.ErrPostNotFound)
	})

	t.Run("missing post", func(t *testing.T) {
		s := h.New(t)
		_, err := s.GetPost(ctx, h.MissingID, "")
		assert.ErrorIs(t, err, apperr.ErrPostNotFound)
		assert.ErrorIs(t, s.IncrementViews(ctx, h.MissingID), apperr.ErrPostNotFound)
	})

	t.Run("views", func(t *testing.T) {
		s := h.New(t)
		u := mustUser(t, s, "alice")
		p := mustPost(t, s, u.ID, 1, "x")

		require.NoError(t, s.IncrementViews(ctx, p.ID))
		require.NoError(t, s.IncrementViews(ctx, p.ID))

		got, err := s.GetPost(ctx, p.ID, "")
		require.NoError(t, err)
		assert.Equal(t, 2, got.ViewCount)
	})
}

func testPagination(t *testing.T, h Harness) {
	ctx := context.Background()

	t.Run("tie break scenario", func(t *testing.T) {
		s := h.New(t)
		u := mustUser(t, s, "alice")
		a := mustPost(t, s, u.ID, 100, "a")
		b := mustPost(t, s, u.ID, 100, "b")
		p3 := mustPost(t, s, u.ID, 200, "c")

		// P2 is whichever same-millisecond post has the greater id.
		p1, p2 := a, b
		if p1.ID > p2.ID {
			p1, p2 = p2, p1
		}

		first, err := s.ListPosts(ctx, ordering.Query{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{p3.ID, p2.ID}, postIDs(first))

		next := ordering.Next(first, 2)
		require.NotNil(t, next)
		assert.Equal(t, cursor.Encode(at(100), p2.ID), *next)

		second, err := s.ListPosts(ctx, ordering.Query{After: cursor.Parse(*next), Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{p1.ID}, postIDs(second))
		assert.Nil(t, ordering.Next(second, 2))
	})

	t.Run("walk is complete without duplicates", func(t *testing.T) {
		s := h.New(t)
		u := mustUser(t, s, "alice")
		var want []models.PostView
		for i := 0; i < 23; i++ {
			p := mustPost(t, s, u.ID, i%4, fmt.Sprintf("post %d", i))
			want = append(want, models.PostView{Post: *p})
		}
		ordering.Sort(want)

		var walked []models.PostView
		var after *cursor.Position
		for pages := 0; pages < 50; pages++ {
			page, err := s.ListPosts(ctx, ordering.Query{After: after, Limit: 5})
			require.NoError(t, err)
			walked = append(walked, page...)
			next := ordering.Next(page, 5)
			if next == nil {
				break
			}
			after = cursor.Parse(*next)
		}
		assert.Equal(t, postIDs(want), postIDs(walked))
	})

	t.Run("author scope", func(t *testing.T) {
		s := h.New(t)
		alice := mustUser(t, s, "alice")
		bob := mustUser(t, s, "bob")
		a1 := mustPost(t, s, alice.ID, 1, "a1")
		mustPost(t, s, bob.ID, 2, "b1")
		a2 := mustPost(t, s, alice.ID, 3, "a2")
		mustPost(t, s, bob.ID, 4, "b2")

		page, err := s.ListPosts(ctx, ordering.Query{AuthorID: alice.ID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{a2.ID, a1.ID}, postIDs(page))

		page, err = s.ListPosts(ctx, ordering.Query{
			AuthorID: alice.ID,
			After:    &cursor.Position{At: at(3), ID: a2.ID},
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID}, postIDs(page))
	})

	t.Run("viewer annotation and counts", func(t *testing.T) {
		s := h.New(t)
		alice := mustUser(t, s, "alice")
		bob := mustUser(t, s, "bob")
		liked := mustPost(t, s, alice.ID, 2, "liked")
		plain := mustPost(t, s, alice.ID, 1, "plain")

		require.NoError(t, s.AddMember(ctx, toggle.Like, liked.ID, bob.ID))
		require.NoError(t, s.AddMember(ctx, toggle.Like, liked.ID, alice.ID))
		require.NoError(t, s.AddMember(ctx, toggle.Repost, liked.ID, bob.ID))
		_, err := s.AddComment(ctx, &models.Comment{PostID: liked.ID, AuthorID: bob.ID, Text: "nice", CreatedAt: at(5)})
		require.NoError(t, err)

		page, err := s.ListPosts(ctx, ordering.Query{Limit: 10, Viewer: bob.ID})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, liked.ID, page[0].ID)
		assert.True(t, page[0].Liked)
		assert.Equal(t, 2, page[0].LikeCount)
		assert.Equal(t, 1, page[0].RepostCount)
		assert.Equal(t, 1, page[0].ReplyCount)
		assert.Equal(t, plain.ID, page[1].ID)
		assert.False(t, page[1].Liked)

		anon, err := s.ListPosts(ctx, ordering.Query{Limit: 10})
		require.NoError(t, err)
		assert.False(t, anon[0].Liked)

		single, err := s.GetPost(ctx, liked.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, single.Liked)
	})
}

func testComments(t *testing.T, h Harness) {
	ctx := context.Background()
	s := h.New(t)
	u := mustUser(t, s, "alice")
	p := mustPost(t, s, u.ID, 1, "x")

	for i, ms := range []int{10, 30, 20} {
		n, err := s.AddComment(ctx, &models.Comment{
			PostID:    p.ID,
			AuthorID:  u.ID,
			Text:      fmt.Sprintf("c%d", i),
			CreatedAt: at(ms),
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}

	comments, err := s.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "c0", comments[0].Text, "insertion order")
	assert.Equal(t, "c2", comments[2].Text)
	for _, c := range comments {
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, u.ID, c.AuthorID)
	}

	_, err = s.AddComment(ctx, &models.Comment{PostID: h.MissingID, AuthorID: u.ID, Text: "x", CreatedAt: at(1)})
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)

	_, err = s.ListComments(ctx, h.MissingID)
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
}

func testLikes(t *testing.T, h Harness) {
	ctx := context.Background()
	s := h.New(t)
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	p := mustPost(t, s, alice.ID, 1, "x")

	for i := 0; i < 2; i++ {
		require.NoError(t, s.AddMember(ctx, toggle.Like, p.ID, bob.ID))
		n, err := s.CountMembers(ctx, toggle.Like, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "add is idempotent")
	}

	ok, err := s.IsMember(ctx, toggle.Like, p.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(ctx, toggle.Like, p.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.RemoveMember(ctx, toggle.Like, p.ID, bob.ID))
		n, err := s.CountMembers(ctx, toggle.Like, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n, "remove is idempotent")
	}

	assert.ErrorIs(t, s.AddMember(ctx, toggle.Like, h.MissingID, bob.ID), apperr.ErrPostNotFound)
	assert.ErrorIs(t, s.AddMember(ctx, toggle.Like, p.ID, h.MissingID), apperr.ErrUserNotFound)
	n, err := s.CountMembers(ctx, toggle.Like, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "unknown actor is not added")
	_, err = s.CountMembers(ctx, toggle.Like, h.MissingID)
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
}

func testReposts(t *testing.T, h Harness) {
	ctx := context.Background()
	s := h.New(t)
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	p := mustPost(t, s, alice.ID, 1, "x")

	require.NoError(t, s.AddMember(ctx, toggle.Repost, p.ID, bob.ID))
	require.NoError(t, s.AddMember(ctx, toggle.Repost, p.ID, bob.ID))
	require.NoError(t, s.AddMember(ctx, toggle.Repost, p.ID, alice.ID))

	n, err := s.CountMembers(ctx, toggle.Repost, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one entry per actor")

	require.NoError(t, s.RemoveMember(ctx, toggle.Repost, p.ID, bob.ID))
	ok, err := s.IsMember(ctx, toggle.Repost, p.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsMember(ctx, toggle.Repost, p.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, s.AddMember(ctx, toggle.Repost, p.ID, h.MissingID), apperr.ErrUserNotFound)
	n, err = s.CountMembers(ctx, toggle.Repost, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testFollows(t *testing.T, h Harness) {
	ctx := context.Background()
	s := h.New(t)
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")

	require.NoError(t, s.AddMember(ctx, toggle.Follow, bob.ID, alice.ID))
	require.NoError(t, s.AddMember(ctx, toggle.Follow, bob.ID, alice.ID))

	ac, err := s.FollowCounts(ctx, alice.ID)
	require.NoError(t, err)
	bc, err := s.FollowCounts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowCounts{Followers: 0, Following: 1}, ac)
	assert.Equal(t, models.FollowCounts{Followers: 1, Following: 0}, bc)

	ok, err := s.IsMember(ctx, toggle.Follow, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IsMember(ctx, toggle.Follow, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok, "follow is directed")

	n, err := s.CountMembers(ctx, toggle.Follow, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.RemoveMember(ctx, toggle.Follow, bob.ID, alice.ID))
	ac, err = s.FollowCounts(ctx, alice.ID)
	require.NoError(t, err)
	bc, err = s.FollowCounts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowCounts{}, ac)
	assert.Equal(t, models.FollowCounts{}, bc)

	assert.ErrorIs(t, s.AddMember(ctx, toggle.Follow, h.MissingID, alice.ID), apperr.ErrUserNotFound)

	fixed, err := s.ReconcileFollows(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func testConcurrentLikes(t *testing.T, h Harness) {
	ctx := context.Background()
	s := h.New(t)
	alice := mustUser(t, s, "alice")
	p := mustPost(t, s, alice.ID, 1, "x")

	var fans []string
	for i := 0; i < 8; i++ {
		fans = append(fans, mustUser(t, s, fmt.Sprintf("fan%d", i)).ID)
	}

	engine := toggle.NewEngine(s)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	var states []toggle.State
	for _, actor := range append(fans, fans[0], fans[0], fans[0]) {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()
			st, err := engine.Set(ctx, actor, p.ID, toggle.Like, true)
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
			states = append(states, st)
		}(actor)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, st := range states {
		assert.True(t, st.Active)
	}

	n, err := s.CountMembers(ctx, toggle.Like, p.ID)
	require.NoError(t, err)
	assert.Equal(t, len(fans), n)

	counts := make([]int, len(states))
	for i, st := range states {
		counts[i] = st.Count
	}
	sort.Ints(counts)
	assert.LessOrEqual(t, counts[len(counts)-1], len(fans))
}
