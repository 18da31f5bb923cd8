package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tillsync/internal/model"
)

// ErrSessionNotFound is returned by SetActiveSession for an unknown id.
var ErrSessionNotFound = errors.New("session not found")

// ActiveSession returns the single logged-in session record, if any. When
// more than one is found (a store written by an older build), the first by
// id wins and a warning is logged.
func (m *Manager) ActiveSession(ctx context.Context) (model.User, bool) {
	var active []model.User
	for _, u := range m.Sessions().All(ctx) {
		if u.IsLoggedIn {
			active = append(active, u)
		}
	}
	if len(active) == 0 {
		return model.User{}, false
	}
	if len(active) > 1 {
		m.log.Warn(ctx, fmt.Sprintf("%d sessions marked logged in", len(active)), nil)
	}
	return active[0], true
}

// SaveSessionCoexist marks every other session logged out, then upserts u
// as the logged-in session. No record is deleted.
func (m *Manager) SaveSessionCoexist(ctx context.Context, u model.User) error {
	u.IsLoggedIn = true
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		if err := logoutOthers(ctx, tx, u.ID); err != nil {
			return err
		}
		return putDoc(ctx, tx, CollSessions, u.ID, u)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveSessionExclusive deletes every other session record, then writes u as
// the logged-in session.
func (m *Manager) SaveSessionExclusive(ctx context.Context, u model.User) error {
	u.IsLoggedIn = true
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := deleteWhere(ctx, tx, CollSessions, "key <> ?", u.ID); err != nil {
			return err
		}
		return putDoc(ctx, tx, CollSessions, u.ID, u)
	})
	if err != nil {
		return fmt.Errorf("save session exclusive: %w", err)
	}
	return nil
}

// SetActiveSession flips the session id to logged in and every other
// session to logged out. Returns ErrSessionNotFound for an unknown id.
func (m *Manager) SetActiveSession(ctx context.Context, id string) (model.User, error) {
	var active model.User
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		u, found, err := getDoc[model.User](ctx, tx, CollSessions, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrSessionNotFound
		}
		if err := logoutOthers(ctx, tx, id); err != nil {
			return err
		}
		u.IsLoggedIn = true
		active = u
		return putDoc(ctx, tx, CollSessions, id, u)
	})
	if err != nil {
		return model.User{}, fmt.Errorf("set active session %s: %w", id, err)
	}
	return active, nil
}

// LogoutAll marks every session logged out.
func (m *Manager) LogoutAll(ctx context.Context) error {
	_, err := m.withTx(ctx, func(tx *sql.Tx) error {
		return logoutOthers(ctx, tx, "")
	})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func logoutOthers(ctx context.Context, tx *sql.Tx, keepID string) error {
	users, err := queryDocs[model.User](ctx, tx, fmt.Sprintf("SELECT doc FROM %q WHERE key <> ?", CollSessions), keepID)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, u := range users {
		if !u.IsLoggedIn {
			continue
		}
		u.IsLoggedIn = false
		if err := putDoc(ctx, tx, CollSessions, u.ID, u); err != nil {
			return err
		}
	}
	return nil
}

// LoggedInCount returns how many session records are marked logged in.
func (m *Manager) LoggedInCount(ctx context.Context) int {
	n := 0
	for _, u := range m.Sessions().All(ctx) {
		if u.IsLoggedIn {
			n++
		}
	}
	return n
}
