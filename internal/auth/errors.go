// Package auth resolves who is operating the terminal: a live identity
// from a verified access token, and offline credentials that survive a
// sign-out.
package auth

import "errors"

var (
	// ErrInvalidCredentials means the identity is known but the password
	// does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrOfflineAuthNotAllowed means no offline credentials exist for the
	// identity, or they were revoked.
	ErrOfflineAuthNotAllowed = errors.New("offline authentication not allowed")
	// ErrInvalidToken means an access token failed verification.
	ErrInvalidToken = errors.New("invalid access token")
)
