package feed_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirp/apperr"
	"chirp/feed"
	"chirp/models"
	"chirp/store/memstore"
	"chirp/testutil"
	"chirp/toggle"
)

// countingUsers records how many batched author lookups a call performs and
// can hide users to simulate deleted accounts.
type countingUsers struct {
	*memstore.MemStore
	calls  atomic.Int32
	hidden map[string]bool
}

func (c *countingUsers) UsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	c.calls.Add(1)
	out, err := c.MemStore.UsersByIDs(ctx, ids)
	for id := range c.hidden {
		delete(out, id)
	}
	return out, err
}

type fixture struct {
	store *memstore.MemStore
	users *countingUsers
	clock *testutil.StubClock
	svc   *feed.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.FixedClock()
	s := memstore.New(clock, testutil.NewStubIDGenerator())
	users := &countingUsers{MemStore: s, hidden: map[string]bool{}}
	return &fixture{
		store: s,
		users: users,
		clock: clock,
		svc:   feed.NewService(s, users, feed.Options{Clock: clock}),
	}
}

func (f *fixture) user(t *testing.T, handle string, mutate func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{Handle: handle, Email: handle + "@example.com", FullName: "User " + handle}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

// post creates a post through the service, then moves the clock forward so
// every post has a distinct timestamp.
func (f *fixture) post(t *testing.T, author *models.User, text string) feed.Item {
	t.Helper()
	item, err := f.svc.CreatePost(context.Background(), author.ID, text, "")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return item
}

func TestFeed_NewestFirstWithAuthors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", func(u *models.User) {
		u.Avatar = "https://cdn.example.com/bob.png"
		u.Verified = true
	})

	first := f.post(t, alice, "  hello   world ")
	second := f.post(t, bob, "second")
	f.users.calls.Store(0)

	page, err := f.svc.Feed(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Nil(t, page.NextCursor)

	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.Equal(t, first.ID, page.Items[1].ID)
	assert.Equal(t, "hello world", page.Items[1].Text)

	assert.Equal(t, "bob", page.Items[0].User.Username)
	assert.True(t, page.Items[0].User.Verified)
	require.NotNil(t, page.Items[0].User.Avatar)
	assert.Equal(t, "https://cdn.example.com/bob.png", *page.Items[0].User.Avatar)
	assert.Nil(t, page.Items[1].User.Avatar)
	assert.Equal(t, "User alice", page.Items[1].User.FullName)

	assert.Equal(t, "2024-01-15T10:30:00.000Z", page.Items[1].CreatedAt)
	assert.Equal(t, "2s ago", page.Items[1].RelativeTime)
	assert.Equal(t, int32(1), f.users.calls.Load())
}

func TestFeed_ViewerAnnotations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", nil)
	p := f.post(t, alice, "like me")

	engine := toggle.NewEngine(f.store)
	_, err := engine.Set(ctx, bob.ID, p.ID, toggle.Like, true)
	require.NoError(t, err)
	_, err = engine.Set(ctx, bob.ID, p.ID, toggle.Repost, true)
	require.NoError(t, err)

	page, err := f.svc.Feed(ctx, "", bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].Liked)
	assert.Equal(t, 1, page.Items[0].LikeCount)
	assert.Equal(t, 1, page.Items[0].RepostCount)

	anon, err := f.svc.Feed(ctx, "", "", 0)
	require.NoError(t, err)
	assert.False(t, anon.Items[0].Liked)
	assert.Equal(t, 1, anon.Items[0].LikeCount)
}

func TestFeed_WalksEveryPostOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	for i := 0; i < 25; i++ {
		f.post(t, alice, fmt.Sprintf("post %d", i))
	}
	f.users.calls.Store(0)

	seen := map[string]bool{}
	var sizes []int
	cursor := ""
	for {
		page, err := f.svc.Feed(ctx, cursor, "", 10)
		require.NoError(t, err)
		sizes = append(sizes, len(page.Items))
		for _, it := range page.Items {
			assert.False(t, seen[it.ID], "duplicate %s", it.ID)
			seen[it.ID] = true
		}
		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Len(t, seen, 25)
	assert.Equal(t, int32(3), f.users.calls.Load())
}

func TestFeed_ExactMultipleEndsWithEmptyPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	for i := 0; i < 4; i++ {
		f.post(t, alice, fmt.Sprintf("post %d", i))
	}

	page, err := f.svc.Feed(ctx, "", "", 2)
	require.NoError(t, err)
	require.NotNil(t, page.NextCursor)
	page, err = f.svc.Feed(ctx, *page.NextCursor, "", 2)
	require.NoError(t, err)
	require.NotNil(t, page.NextCursor)
	page, err = f.svc.Feed(ctx, *page.NextCursor, "", 2)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Nil(t, page.NextCursor)
}

func TestFeed_MalformedCursorStartsOver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	f.post(t, alice, "one")
	newest := f.post(t, alice, "two")

	for _, raw := range []string{"garbage", "|", "not-a-time|abc", "2024-01-15T10:30:00.000Z|"} {
		page, err := f.svc.Feed(ctx, raw, "", 0)
		require.NoError(t, err, raw)
		require.Len(t, page.Items, 2, raw)
		assert.Equal(t, newest.ID, page.Items[0].ID, raw)
	}
}

func TestFeed_LimitIsClamped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	for i := 0; i < 60; i++ {
		f.post(t, alice, fmt.Sprintf("post %d", i))
	}

	page, err := f.svc.Feed(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 20)

	page, err = f.svc.Feed(ctx, "", "", 500)
	require.NoError(t, err)
	assert.Len(t, page.Items, 50)
}

func TestFeed_UnknownAuthorFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ghost := f.user(t, "ghost", nil)
	f.post(t, ghost, "boo")
	f.users.hidden[ghost.ID] = true

	page, err := f.svc.Feed(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Unknown User", page.Items[0].User.FullName)
	assert.Nil(t, page.Items[0].User.Avatar)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", nil)
	mine := f.post(t, alice, "mine")
	f.post(t, bob, "not mine")

	page, err := f.svc.Timeline(ctx, "alice", "", "", 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine.ID, page.Items[0].ID)

	_, err = f.svc.Timeline(ctx, "nobody", "", "", 0)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestPost_CountsViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	p := f.post(t, alice, "look")
	assert.Equal(t, 0, p.ViewCount)

	item, err := f.svc.Post(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, item.ViewCount)
	item, err = f.svc.Post(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.ViewCount)

	_, err = f.svc.Post(ctx, "id-9999", "")
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
	_, err = f.svc.Post(ctx, "not-an-id", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidID)
}

func TestCreatePost_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)

	_, err := f.svc.CreatePost(ctx, alice.ID, " \n\t ", "")
	assert.ErrorIs(t, err, apperr.ErrEmptyText)
	_, err = f.svc.CreatePost(ctx, alice.ID, 42, "")
	assert.ErrorIs(t, err, apperr.ErrEmptyText)
	long := make([]rune, 281)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.svc.CreatePost(ctx, alice.ID, string(long), "")
	assert.ErrorIs(t, err, apperr.ErrTextTooLong)

	page, err := f.svc.Feed(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestCreatePost_Reply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	parent := f.post(t, alice, "parent")

	reply, err := f.svc.CreatePost(ctx, alice.ID, "child", parent.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentPostID)
	assert.Equal(t, parent.ID, *reply.ParentPostID)

	_, err = f.svc.CreatePost(ctx, alice.ID, "orphan", "id-9999")
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
	_, err = f.svc.CreatePost(ctx, alice.ID, "orphan", "no|such|id")
	assert.ErrorIs(t, err, apperr.ErrInvalidID)
}

func TestComments_NewestFirstByOffset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", nil)
	p := f.post(t, alice, "discuss")

	var ids []string
	for i := 0; i < 5; i++ {
		c, replies, err := f.svc.AddComment(ctx, bob.ID, p.ID, fmt.Sprintf("c%d", i))
		require.NoError(t, err)
		assert.Equal(t, i+1, replies)
		assert.Equal(t, "bob", c.User.Username)
		ids = append(ids, c.ID)
		f.clock.Advance(time.Second)
	}

	page, err := f.svc.Comments(ctx, p.ID, "", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.ReplyCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[4], page.Items[0].ID)
	assert.Equal(t, ids[3], page.Items[1].ID)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, 2, *page.NextCursor)

	page, err = f.svc.Comments(ctx, p.ID, "4", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID)
	assert.Nil(t, page.NextCursor)

	page, err = f.svc.Comments(ctx, p.ID, "bogus", 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)

	view, err := f.svc.Post(ctx, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 5, view.ReplyCount)
}

func TestAddComment_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", nil)

	_, _, err := f.svc.AddComment(ctx, alice.ID, "id-9999", "hi")
	assert.ErrorIs(t, err, apperr.ErrPostNotFound)
	_, _, err = f.svc.AddComment(ctx, alice.ID, "bad id", "hi")
	assert.ErrorIs(t, err, apperr.ErrInvalidID)
	_, err = f.svc.Comments(ctx, "bad id", "", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidID)

	p := f.post(t, alice, "x")
	_, _, err = f.svc.AddComment(ctx, alice.ID, p.ID, "")
	assert.ErrorIs(t, err, apperr.ErrEmptyText)
}
