// Package memstore is an in-process store.Store guarded by a single mutex.
// Every membership mutation is an add-if-absent / remove-if-present on a Go
// map performed under the lock, which makes it atomic.
package memstore

import (
	"context"
	"sync"

	"chirp/apperr"
	"chirp/models"
	"chirp/ordering"
	"chirp/store"
	"chirp/toggle"
)

type postRecord struct {
	post     models.Post
	likes    map[string]struct{}
	reposts  []models.Repost
	comments []models.Comment
}

func (r *postRecord) view(viewer string) models.PostView {
	_, liked := r.likes[viewer]
	return models.PostView{
		Post:        r.post,
		LikeCount:   len(r.likes),
		RepostCount: len(r.reposts),
		ReplyCount:  len(r.comments),
		Liked:       viewer != "" && liked,
	}
}

func (r *postRecord) repostIndex(actor string) int {
	for i, rp := range r.reposts {
		if rp.UserID == actor {
			return i
		}
	}
	return -1
}

type MemStore struct {
	mu    sync.RWMutex
	clock store.Clock
	ids   store.IDGenerator

	users     map[string]*models.User
	handles   map[string]string
	emails    map[string]string
	following map[string]map[string]struct{}
	followers map[string]map[string]struct{}
	posts     map[string]*postRecord
}

var _ store.Store = (*MemStore)(nil)

func New(clock store.Clock, ids store.IDGenerator) *MemStore {
	if clock == nil {
		clock = store.RealClock{}
	}
	if ids == nil {
		ids = store.UUIDGenerator{}
	}
	return &MemStore{
		clock:     clock,
		ids:       ids,
		users:     make(map[string]*models.User),
		handles:   make(map[string]string),
		emails:    make(map[string]string),
		following: make(map[string]map[string]struct{}),
		followers: make(map[string]map[string]struct{}),
		posts:     make(map[string]*postRecord),
	}
}

// Posts

func (m *MemStore) CreatePost(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[p.AuthorID]; !ok {
		return apperr.ErrUserNotFound
	}
	if p.ParentPostID != nil {
		if _, ok := m.posts[*p.ParentPostID]; !ok {
			return apperr.ErrPostNotFound
		}
	}
	if p.ID == "" {
		p.ID = m.ids.New()
	}
	m.posts[p.ID] = &postRecord{post: *p, likes: make(map[string]struct{})}
	return nil
}

func (m *MemStore) GetPost(_ context.Context, id, viewer string) (*models.PostView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.posts[id]
	if !ok {
		return nil, apperr.ErrPostNotFound
	}
	v := rec.view(viewer)
	return &v, nil
}

func (m *MemStore) ListPosts(_ context.Context, q ordering.Query) ([]models.PostView, error) {
	m.mu.RLock()
	views := make([]models.PostView, 0, len(m.posts))
	for _, rec := range m.posts {
		if q.AuthorID != "" && rec.post.AuthorID != q.AuthorID {
			continue
		}
		views = append(views, rec.view(q.Viewer))
	}
	m.mu.RUnlock()

	page, _ := ordering.Page(views, q.After, q.Limit)
	return page, nil
}

func (m *MemStore) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.posts[id]
	if !ok {
		return apperr.ErrPostNotFound
	}
	rec.post.ViewCount++
	return nil
}

func (m *MemStore) AddComment(_ context.Context, c *models.Comment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.posts[c.PostID]
	if !ok {
		return 0, apperr.ErrPostNotFound
	}
	if c.ID == "" {
		c.ID = m.ids.New()
	}
	rec.comments = append(rec.comments, *c)
	return len(rec.comments), nil
}

func (m *MemStore) ListComments(_ context.Context, postID string) ([]models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.posts[postID]
	if !ok {
		return nil, apperr.ErrPostNotFound
	}
	return append([]models.Comment(nil), rec.comments...), nil
}

// Users

func (m *MemStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.handles[u.Handle]; taken {
		return apperr.ErrHandleTaken
	}
	if _, taken := m.emails[u.Email]; taken {
		return apperr.ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = m.ids.New()
	}
	cp := *u
	m.users[u.ID] = &cp
	m.handles[u.Handle] = u.ID
	m.emails[u.Email] = u.ID
	return nil
}

func (m *MemStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	m.mu.RLock()
	id, ok := m.handles[handle]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return m.GetUser(ctx, id)
}

func (m *MemStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	id, ok := m.emails[email]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return m.GetUser(ctx, id)
}

func (m *MemStore) UsersByIDs(_ context.Context, ids []string) (map[string]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = *u
		}
	}
	return out, nil
}

func (m *MemStore) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.Link != nil {
		u.Link = *upd.Link
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.Cover != nil {
		u.Cover = *upd.Cover
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) FollowCounts(_ context.Context, id string) (models.FollowCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.users[id]; !ok {
		return models.FollowCounts{}, apperr.ErrUserNotFound
	}
	return models.FollowCounts{
		Followers: len(m.followers[id]),
		Following: len(m.following[id]),
	}, nil
}

// Memberships

func (m *MemStore) ValidID(id string) bool { return m.ids.Valid(id) }

func (m *MemStore) AddMember(_ context.Context, rel toggle.Relation, target, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch rel {
	case toggle.Like, toggle.Repost:
		rec, ok := m.posts[target]
		if !ok {
			return apperr.ErrPostNotFound
		}
		if _, ok := m.users[actor]; !ok {
			return apperr.ErrUserNotFound
		}
		if rel == toggle.Like {
			rec.likes[actor] = struct{}{}
			return nil
		}
		if rec.repostIndex(actor) < 0 {
			rec.reposts = append(rec.reposts, models.Repost{UserID: actor, CreatedAt: store.Stamp(m.clock)})
		}
		return nil
	case toggle.Follow:
		if err := m.requireUsers(actor, target); err != nil {
			return err
		}
		addEdge(m.following, actor, target)
		addEdge(m.followers, target, actor)
		return nil
	}
	return errUnknownRelation(rel)
}

func (m *MemStore) RemoveMember(_ context.Context, rel toggle.Relation, target, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch rel {
	case toggle.Like, toggle.Repost:
		rec, ok := m.posts[target]
		if !ok {
			return apperr.ErrPostNotFound
		}
		if rel == toggle.Like {
			delete(rec.likes, actor)
			return nil
		}
		if i := rec.repostIndex(actor); i >= 0 {
			rec.reposts = append(rec.reposts[:i], rec.reposts[i+1:]...)
		}
		return nil
	case toggle.Follow:
		if err := m.requireUsers(actor, target); err != nil {
			return err
		}
		delete(m.following[actor], target)
		delete(m.followers[target], actor)
		return nil
	}
	return errUnknownRelation(rel)
}

func (m *MemStore) IsMember(_ context.Context, rel toggle.Relation, target, actor string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch rel {
	case toggle.Like, toggle.Repost:
		rec, ok := m.posts[target]
		if !ok {
			return false, apperr.ErrPostNotFound
		}
		if rel == toggle.Like {
			_, liked := rec.likes[actor]
			return liked, nil
		}
		return rec.repostIndex(actor) >= 0, nil
	case toggle.Follow:
		if _, ok := m.users[target]; !ok {
			return false, apperr.ErrUserNotFound
		}
		_, ok := m.followers[target][actor]
		return ok, nil
	}
	return false, errUnknownRelation(rel)
}

func (m *MemStore) CountMembers(_ context.Context, rel toggle.Relation, target string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch rel {
	case toggle.Like, toggle.Repost:
		rec, ok := m.posts[target]
		if !ok {
			return 0, apperr.ErrPostNotFound
		}
		if rel == toggle.Like {
			return len(rec.likes), nil
		}
		return len(rec.reposts), nil
	case toggle.Follow:
		if _, ok := m.users[target]; !ok {
			return 0, apperr.ErrUserNotFound
		}
		return len(m.followers[target]), nil
	}
	return 0, errUnknownRelation(rel)
}

// ReconcileFollows is a no-op: both sides are written under one lock.
func (m *MemStore) ReconcileFollows(context.Context) (int, error) { return 0, nil }

func (m *MemStore) Close(context.Context) error { return nil }

func (m *MemStore) requireUsers(ids ...string) error {
	for _, id := range ids {
		if _, ok := m.users[id]; !ok {
			return apperr.ErrUserNotFound
		}
	}
	return nil
}

func addEdge(edges map[string]map[string]struct{}, from, to string) {
	set, ok := edges[from]
	if !ok {
		set = make(map[string]struct{})
		edges[from] = set
	}
	set[to] = struct{}{}
}
