package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var signingMethod = jwt.SigningMethodHS256

// TokenIdentity holds the current access token and yields its subject as
// the live actor. An expired or cleared token yields no actor.
type TokenIdentity struct {
	secret []byte
	issuer string
	now    func() time.Time

	mu    sync.RWMutex
	token string
}

// NewTokenIdentity verifies tokens with secret. An empty issuer disables
// the issuer check.
func NewTokenIdentity(secret, issuer string) *TokenIdentity {
	return &TokenIdentity{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// SetToken verifies token and makes it current.
func (t *TokenIdentity) SetToken(token string) (string, error) {
	sub, err := t.Verify(token)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
	return sub, nil
}

// Clear drops the current token.
func (t *TokenIdentity) Clear() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}

// CurrentActor returns the subject of the current token while it is
// still valid.
func (t *TokenIdentity) CurrentActor(context.Context) (string, bool) {
	t.mu.RLock()
	token := t.token
	t.mu.RUnlock()
	if token == "" {
		return "", false
	}
	sub, err := t.Verify(token)
	if err != nil {
		return "", false
	}
	return sub, true
}

// Verify checks the signature, expiry and issuer of token and returns its
// subject.
func (t *TokenIdentity) Verify(token string) (string, error) {
	if len(t.secret) == 0 {
		return "", fmt.Errorf("%w: jwt secret is not configured", ErrInvalidToken)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(tok *jwt.Token) (any, error) {
		if tok.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %s", tok.Header["alg"])
		}
		return t.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, errors.New("missing subject"))
	}
	return claims.Subject, nil
}

// MintToken signs a token for subject. Used by tooling and tests; the
// terminal normally receives tokens from the remote.
func MintToken(secret, issuer, subject string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
