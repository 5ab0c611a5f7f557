// Package session owns token issuance, storage and revocation. One
// active session per user: issuing overwrites any prior token under the
// same key.
package session

import (
	"context"
	"errors"
	"fmt"

	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/store"
	"authgate/internal/domain/auth/token"
)

const sessionPrefix = "auth:"

// Session is the issued bearer credential returned to the caller.
type Session struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	UserID    uint   `json:"user_id"`
}

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	Codec  *token.Codec
	Store  store.Store
	Logger model.Logger
}

// Manager coordinates the token codec and the ephemeral session keys.
type Manager struct {
	codec  *token.Codec
	store  store.Store
	logger model.Logger
}

// New wires a Manager using the supplied options.
func New(opts Options) (*Manager, error) {
	if opts.Codec == nil {
		return nil, errors.New("session manager requires a token codec")
	}
	if opts.Store == nil {
		return nil, errors.New("session manager requires an ephemeral store")
	}
	if opts.Logger == nil {
		return nil, errors.New("session manager requires a logger")
	}
	return &Manager{
		codec:  opts.Codec,
		store:  opts.Store,
		logger: opts.Logger,
	}, nil
}

func sessionKey(username string) string {
	return sessionPrefix + username
}

// Issue signs a fresh token for the user and stores it under the
// session key, invalidating discoverability of any prior token. The
// claim expiry, the store TTL and the advertised lifetime all share one
// canonical duration.
func (m *Manager) Issue(ctx context.Context, username string, userID uint) (*Session, error) {
	signed, err := m.codec.Sign(username, userID)
	if err != nil {
		m.logger.Error("token signing failed for %s: %v", username, err)
		return nil, fmt.Errorf("%w: token signing failed", model.ErrServiceDegraded)
	}

	ttl := m.codec.TTL()
	if err := m.store.SetWithTTL(ctx, sessionKey(username), signed, ttl); err != nil {
		m.logger.Error("session store write failed for %s: %v", username, err)
		return nil, fmt.Errorf("%w: session store unavailable", model.ErrServiceDegraded)
	}

	m.logger.Debug("session issued for %s", username)
	return &Session{
		Token:     signed,
		TokenType: "bearer",
		ExpiresIn: int(ttl.Seconds()),
		UserID:    userID,
	}, nil
}

// Revoke deletes the session key. Revoking an absent session is not an
// error; logout stays idempotent.
func (m *Manager) Revoke(ctx context.Context, username string) error {
	if err := m.store.Delete(ctx, sessionKey(username)); err != nil {
		m.logger.Error("session revoke failed for %s: %v", username, err)
		return fmt.Errorf("%w: session store unavailable", model.ErrServiceDegraded)
	}
	m.logger.Info("session revoked for %s", username)
	return nil
}

// Exists reports session presence. This is the revocation-honoring
// check used by the request authorization guard; Decode alone stays
// valid until the claim's own expiry.
func (m *Manager) Exists(ctx context.Context, username string) (bool, error) {
	ok, err := m.store.Exists(ctx, sessionKey(username))
	if err != nil {
		m.logger.Error("session presence check failed for %s: %v", username, err)
		return false, fmt.Errorf("%w: session store unavailable", model.ErrServiceDegraded)
	}
	return ok, nil
}

// Decode verifies the token signature and expiry without consulting
// the store.
func (m *Manager) Decode(raw string) (*token.Claims, error) {
	return m.codec.Decode(raw)
}
