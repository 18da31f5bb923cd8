// Package enrich stamps ownership and audit fields onto records before
// they are persisted.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/tillsync/internal/model"
)

// ErrAuthenticationRequired is returned by RequireActor when no identity
// can be resolved. It is the only error the core escalates instead of
// degrading.
var ErrAuthenticationRequired = errors.New("authentication required")

// IdentitySource yields the live-authenticated actor, if any.
type IdentitySource interface {
	CurrentActor(ctx context.Context) (string, bool)
}

// SessionSource yields the last active local session.
type SessionSource interface {
	ActiveSession(ctx context.Context) (model.User, bool)
}

// Reachability reports whether the remote is reachable.
type Reachability interface {
	IsReachable() bool
}

// Options configures an Enricher. Any field may be nil.
type Options struct {
	Live     IdentitySource
	Sessions SessionSource
	Reach    Reachability
	Now      func() time.Time
}

// Enricher resolves the actor and stamps records. It holds no state of its
// own beyond its collaborators.
type Enricher struct {
	live     IdentitySource
	sessions SessionSource
	reach    Reachability
	now      func() time.Time
}

func New(opts Options) *Enricher {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Enricher{live: opts.Live, sessions: opts.Sessions, reach: opts.Reach, now: now}
}

// WithSessions returns a copy of e that asks src for the active session
// before its own session source. A session layer uses it to answer from
// memory when the store cannot be read.
func (e *Enricher) WithSessions(src SessionSource) *Enricher {
	cp := *e
	switch {
	case src == nil:
	case e.sessions == nil:
		cp.sessions = src
	default:
		cp.sessions = sessionChain{src, e.sessions}
	}
	return &cp
}

type sessionChain []SessionSource

func (c sessionChain) ActiveSession(ctx context.Context) (model.User, bool) {
	for _, src := range c {
		if u, ok := src.ActiveSession(ctx); ok && u.ID != "" {
			return u, true
		}
	}
	return model.User{}, false
}

// Actor resolves the acting identity: the live identity first, then the
// active local session.
func (e *Enricher) Actor(ctx context.Context) (string, bool) {
	if e.live != nil {
		if id, ok := e.live.CurrentActor(ctx); ok && id != "" {
			return id, true
		}
	}
	if e.sessions != nil {
		if u, ok := e.sessions.ActiveSession(ctx); ok && u.ID != "" {
			return u.ID, true
		}
	}
	return "", false
}

// RequireActor is Actor that fails with ErrAuthenticationRequired.
func (e *Enricher) RequireActor(ctx context.Context) (string, error) {
	id, ok := e.Actor(ctx)
	if !ok {
		return "", ErrAuthenticationRequired
	}
	return id, nil
}

func (e *Enricher) unreachable() bool {
	return e.reach == nil || !e.reach.IsReachable()
}

// StampCreate sets creator, creation and update fields on rec. An existing
// creation time is kept. CreatedOffline is set only while unreachable.
func (e *Enricher) StampCreate(ctx context.Context, rec model.Auditable) {
	a := rec.AuditFields()
	now := e.now()
	actor, _ := e.Actor(ctx)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if actor != "" {
		a.CreatedBy = actor
		a.UpdatedBy = actor
	}
	a.CreatedOffline = e.unreachable()
}

// StampUpdate sets the update fields on rec and marks it modified offline
// while unreachable. Creation fields are untouched.
func (e *Enricher) StampUpdate(ctx context.Context, rec model.Auditable) {
	a := rec.AuditFields()
	a.UpdatedAt = e.now()
	if actor, ok := e.Actor(ctx); ok {
		a.UpdatedBy = actor
	}
	if e.unreachable() {
		a.ModifiedOffline = true
	}
}
