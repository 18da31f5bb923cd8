package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tillsync/internal/model"
)

// SettingsStore is the slice of the local store offline credentials live in.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string, out any) bool
	PutSetting(ctx context.Context, key string, value any) error
	DeleteSetting(ctx context.Context, key string) error
	SettingsWithPrefix(ctx context.Context, prefix string) []model.Setting
}

// Credential is the value stored under the reserved offline-auth key. It
// keeps a profile snapshot so a session can be rebuilt after the session
// collection was cleared.
type Credential struct {
	Email   string     `json:"email"`
	Hash    string     `json:"hash"`
	Allowed bool       `json:"allowed"`
	User    model.User `json:"user"`
}

// OfflineAuthenticator checks passwords against locally stored bcrypt
// hashes.
type OfflineAuthenticator struct {
	store SettingsStore
	cost  int
}

// NewOfflineAuthenticator uses bcrypt.DefaultCost when cost is zero.
func NewOfflineAuthenticator(store SettingsStore, cost int) *OfflineAuthenticator {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &OfflineAuthenticator{store: store, cost: cost}
}

// Remember stores credentials for user after a successful online login.
func (a *OfflineAuthenticator) Remember(ctx context.Context, user model.User, password string) error {
	if user.ID == "" || user.Email == "" {
		return errors.New("remember: user id and email are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("remember %s: %w", user.ID, err)
	}
	user.IsLoggedIn = false
	cred := Credential{
		Email:   normalizeEmail(user.Email),
		Hash:    string(hash),
		Allowed: true,
		User:    user,
	}
	return a.store.PutSetting(ctx, model.OfflineAuthKey(user.ID), cred)
}

// Authenticate returns the stored profile for email when password matches.
func (a *OfflineAuthenticator) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	for _, s := range a.store.SettingsWithPrefix(ctx, model.OfflineAuthPrefix) {
		id := strings.TrimPrefix(s.Key, model.OfflineAuthPrefix)
		var cred Credential
		if !a.store.GetSetting(ctx, s.Key, &cred) || cred.Email != email {
			continue
		}
		if !cred.Allowed {
			return model.User{}, ErrOfflineAuthNotAllowed
		}
		if err := bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(password)); err != nil {
			return model.User{}, ErrInvalidCredentials
		}
		user := cred.User
		user.ID = id
		return user, nil
	}
	return model.User{}, ErrOfflineAuthNotAllowed
}

// Allowed reports whether identityID may authenticate offline.
func (a *OfflineAuthenticator) Allowed(ctx context.Context, identityID string) bool {
	var cred Credential
	return a.store.GetSetting(ctx, model.OfflineAuthKey(identityID), &cred) && cred.Allowed
}

// SetAllowed flips the offline-auth flag for identityID without dropping
// its stored credentials.
func (a *OfflineAuthenticator) SetAllowed(ctx context.Context, identityID string, allowed bool) error {
	key := model.OfflineAuthKey(identityID)
	var cred Credential
	if !a.store.GetSetting(ctx, key, &cred) {
		return ErrOfflineAuthNotAllowed
	}
	cred.Allowed = allowed
	return a.store.PutSetting(ctx, key, cred)
}

// Revoke removes identityID's offline credentials.
func (a *OfflineAuthenticator) Revoke(ctx context.Context, identityID string) error {
	return a.store.DeleteSetting(ctx, model.OfflineAuthKey(identityID))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
