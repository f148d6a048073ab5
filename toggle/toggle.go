// Package toggle flips set memberships (like, repost, follow) idempotently.
//
// All mutations go through the store's add-if-absent / remove-if-present
// primitive, and results are read back from the store after the mutation,
// so duplicate or interleaved requests from the same actor never make the
// reported count drift from the real set size.
package toggle

import (
	"context"
	"fmt"

	"chirp/apperr"
)

type Relation int

const (
	// Like: actor is in the post's liked-by set.
	Like Relation = iota + 1
	// Repost: actor has an entry in the post's repost list.
	Repost
	// Follow: actor follows the target user. The store keeps the target's
	// followers side in the same unit of work.
	Follow
)

func (r Relation) String() string {
	switch r {
	case Like:
		return "like"
	case Repost:
		return "repost"
	case Follow:
		return "follow"
	default:
		return fmt.Sprintf("relation(%d)", int(r))
	}
}

// Store is the membership primitive a storage adapter provides. Add and
// Remove must be atomic at the storage layer and must be no-ops when the
// membership already has the requested state. Count is the size of the
// target's set (followers, for Follow). A missing target is reported as an
// apperr not-found error.
type Store interface {
	// ValidID reports whether id is well-formed for this store. It does not
	// check that the record exists.
	ValidID(id string) bool
	AddMember(ctx context.Context, rel Relation, target, actor string) error
	RemoveMember(ctx context.Context, rel Relation, target, actor string) error
	IsMember(ctx context.Context, rel Relation, target, actor string) (bool, error)
	CountMembers(ctx context.Context, rel Relation, target string) (int, error)
}

// State is a membership and the set size, both read after the mutation.
type State struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Set puts actor's membership in target's rel set into the desired state.
func (e *Engine) Set(ctx context.Context, actor, target string, rel Relation, desired bool) (State, error) {
	if err := e.validate(actor, target, rel); err != nil {
		return State{}, err
	}

	var err error
	if desired {
		err = e.store.AddMember(ctx, rel, target, actor)
	} else {
		err = e.store.RemoveMember(ctx, rel, target, actor)
	}
	if err != nil {
		return State{}, fmt.Errorf("set %s: %w", rel, err)
	}
	return e.read(ctx, actor, target, rel)
}

// Toggle flips actor's membership and returns the state read back after.
func (e *Engine) Toggle(ctx context.Context, actor, target string, rel Relation) (State, error) {
	if err := e.validate(actor, target, rel); err != nil {
		return State{}, err
	}

	member, err := e.store.IsMember(ctx, rel, target, actor)
	if err != nil {
		return State{}, fmt.Errorf("toggle %s: %w", rel, err)
	}
	return e.Set(ctx, actor, target, rel, !member)
}

// Get returns the current state without mutating.
func (e *Engine) Get(ctx context.Context, actor, target string, rel Relation) (State, error) {
	if !e.store.ValidID(target) {
		return State{}, apperr.ErrInvalidID
	}
	if actor == "" {
		n, err := e.store.CountMembers(ctx, rel, target)
		if err != nil {
			return State{}, fmt.Errorf("count %s: %w", rel, err)
		}
		return State{Count: n}, nil
	}
	if !e.store.ValidID(actor) {
		return State{}, apperr.ErrInvalidID
	}
	return e.read(ctx, actor, target, rel)
}

func (e *Engine) read(ctx context.Context, actor, target string, rel Relation) (State, error) {
	member, err := e.store.IsMember(ctx, rel, target, actor)
	if err != nil {
		return State{}, fmt.Errorf("read %s membership: %w", rel, err)
	}
	n, err := e.store.CountMembers(ctx, rel, target)
	if err != nil {
		return State{}, fmt.Errorf("count %s: %w", rel, err)
	}
	return State{Active: member, Count: n}, nil
}

// validate rejects malformed ids and self-follows before the store is
// touched.
func (e *Engine) validate(actor, target string, rel Relation) error {
	if !e.store.ValidID(actor) || !e.store.ValidID(target) {
		return apperr.ErrInvalidID
	}
	switch rel {
	case Like, Repost:
	case Follow:
		if actor == target {
			return apperr.ErrCannotFollowSelf
		}
	default:
		return fmt.Errorf("unknown relation %s", rel)
	}
	return nil
}
