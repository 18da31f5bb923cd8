package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tillsync/internal/model"
	"github.com/roach88/tillsync/internal/store"
)

// LoadActiveSession reflects the logged-in session record, if any, and
// its store's working set into memory.
func (c *Cache) LoadActiveSession(ctx context.Context) (model.User, bool) {
	c.reload(ctx)
	return c.User()
}

// SaveSession persists u as the logged-in session in the given mode and
// reloads state. Exclusive is used at the authentication boundary so no
// stale identity remains on a shared terminal.
func (c *Cache) SaveSession(ctx context.Context, u model.User, mode SaveMode) error {
	if u.CurrentStoreID == "" {
		if stores := permittedStores(u); len(stores) > 0 {
			u.CurrentStoreID = stores[0]
		}
	}
	var err error
	switch mode {
	case Exclusive:
		err = c.store.SaveSessionExclusive(ctx, u)
	default:
		err = c.store.SaveSessionCoexist(ctx, u)
	}
	if err != nil {
		return err
	}
	c.reload(ctx)
	if c.store.Availability() != store.Available {
		u.IsLoggedIn = true
		c.mu.Lock()
		c.user, c.hasUser = u, true
		c.mu.Unlock()
	}
	c.log.Info(c.log.WithFields(ctx, map[string]any{"user_id": u.ID, "mode": mode.String()}), "session saved")
	return nil
}

// SetActiveUser flips the existing session id to logged in and every
// other session to logged out. Nothing is deleted.
func (c *Cache) SetActiveUser(ctx context.Context, id string) (model.User, error) {
	u, err := c.store.SetActiveSession(ctx, id)
	if errors.Is(err, store.ErrSessionNotFound) {
		return model.User{}, fmt.Errorf("%w: %s", ErrNoSuchSession, id)
	}
	if err != nil {
		return model.User{}, err
	}
	c.reload(ctx)
	return u, nil
}

// Logout marks every session logged out and clears the in-memory state.
func (c *Cache) Logout(ctx context.Context) error {
	if err := c.store.LogoutAll(ctx); err != nil {
		return err
	}
	c.clearMemory()
	c.log.Info(ctx, "logged out")
	return nil
}

// SwitchStore selects storeID for the active user and reloads the working
// set. The user must hold a permission for the store.
func (c *Cache) SwitchStore(ctx context.Context, storeID string) error {
	u, err := c.requireUser()
	if err != nil {
		return err
	}
	if storeID == "" || !u.HasStore(storeID) {
		return fmt.Errorf("%w: %s", ErrStoreNotPermitted, storeID)
	}
	u.CurrentStoreID = storeID
	return c.SaveSession(ctx, u, Coexist)
}

// AcceptPolicy records policy acceptance on the session and under the
// reserved policy key, which survives bulk-clear.
func (c *Cache) AcceptPolicy(ctx context.Context) error {
	u, err := c.requireUser()
	if err != nil {
		return err
	}
	if err := c.store.PutSetting(ctx, model.PolicyAcceptedKey(u.ID), policyAcceptance{AcceptedAt: c.now()}); err != nil {
		return wrapf(err, "accept policy %s", u.ID)
	}
	u.IsAgreedToPolicy = true
	return c.SaveSession(ctx, u, Coexist)
}

// PolicyAccepted reports whether identityID has a stored policy acceptance.
func (c *Cache) PolicyAccepted(ctx context.Context, identityID string) bool {
	var p policyAcceptance
	return c.store.GetSetting(ctx, model.PolicyAcceptedKey(identityID), &p)
}

// ClearAllExceptReservedSettings wipes sessions, products, orders,
// companies, stores and non-reserved settings, then clears memory.
func (c *Cache) ClearAllExceptReservedSettings(ctx context.Context) error {
	if err := c.store.ClearAllExceptReserved(ctx); err != nil {
		return err
	}
	c.clearMemory()
	c.log.Info(ctx, "local data cleared")
	return nil
}

func permittedStores(u model.User) []string {
	var out []string
	for _, p := range u.Permissions {
		if p.StoreID != "" {
			out = append(out, p.StoreID)
		}
	}
	return out
}

type policyAcceptance struct {
	AcceptedAt time.Time `json:"acceptedAt"`
}
