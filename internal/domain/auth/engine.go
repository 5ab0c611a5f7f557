// Package auth orchestrates the credential verifier, abuse guard and
// session manager into the login/logout protocol.
package auth

import (
	"context"
	"errors"
	"time"

	"authgate/internal/domain/auth/credential"
	"authgate/internal/domain/auth/guard"
	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/repository"
	"authgate/internal/domain/auth/session"
	"authgate/internal/domain/auth/store"
)

type (
	// Account re-exports the shared auth entity for callers.
	Account = model.Account
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

// Outcome sentinels re-exported for transport-layer mapping.
var (
	ErrRateLimited        = model.ErrRateLimited
	ErrInvalidCredentials = model.ErrInvalidCredentials
	ErrAccountLocked      = model.ErrAccountLocked
	ErrInvalidToken       = model.ErrInvalidToken
	ErrMissingToken       = model.ErrMissingToken
	ErrServiceDegraded    = model.ErrServiceDegraded
)

const defaultCallTimeout = 3 * time.Second

// Options encapsulates the dependencies required to construct an Engine.
type Options struct {
	Accounts    repository.Accounts
	Guard       *guard.Guard
	Sessions    *session.Manager
	Verifier    *credential.Verifier
	Store       store.Store
	Logger      model.Logger
	CallTimeout time.Duration
}

// Engine is the top-level authentication coordinator. It holds no
// mutable state of its own; every decision reads from or writes to the
// two injected stores.
type Engine struct {
	accounts    repository.Accounts
	guard       *guard.Guard
	sessions    *session.Manager
	verifier    *credential.Verifier
	store       store.Store
	logger      model.Logger
	callTimeout time.Duration
}

// NewEngine wires an Engine using the supplied options.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Accounts == nil {
		return nil, errors.New("auth engine requires an account store")
	}
	if opts.Guard == nil {
		return nil, errors.New("auth engine requires an abuse guard")
	}
	if opts.Sessions == nil {
		return nil, errors.New("auth engine requires a session manager")
	}
	if opts.Verifier == nil {
		return nil, errors.New("auth engine requires a credential verifier")
	}
	if opts.Store == nil {
		return nil, errors.New("auth engine requires an ephemeral store")
	}
	if opts.Logger == nil {
		return nil, errors.New("auth engine requires a logger")
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Engine{
		accounts:    opts.Accounts,
		guard:       opts.Guard,
		sessions:    opts.Sessions,
		verifier:    opts.Verifier,
		store:       opts.Store,
		logger:      opts.Logger,
		callTimeout: timeout,
	}, nil
}

// Sessions exposes the session manager for the request authorization
// guard.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.callTimeout)
}

// Login runs the full protocol: rate check, account load, credential
// check, abuse bookkeeping, lockout check, issuance. An unknown
// username and a wrong password yield the identical outcome; the
// lockout rejection is deliberately distinguishable.
func (e *Engine) Login(ctx context.Context, username, password, clientAddr string) (*session.Session, error) {
	rateCtx, cancel := e.callCtx(ctx)
	err := e.guard.CheckRateLimit(rateCtx, clientAddr)
	cancel()
	if err != nil {
		return nil, err
	}

	findCtx, cancel := e.callCtx(ctx)
	account, err := e.accounts.FindByUsername(findCtx, username)
	cancel()
	if err != nil {
		e.logger.Error("account lookup failed for %s: %v", username, err)
		return nil, model.ErrServiceDegraded
	}

	if account == nil || !e.verifier.Verify(password, account.PasswordHash) {
		failCtx, cancel := e.callCtx(ctx)
		recordErr := e.guard.RecordFailure(failCtx, clientAddr, account)
		cancel()
		if recordErr != nil {
			// The rejection stands either way; the degraded bookkeeping
			// is logged but must not change the outcome shape.
			e.logger.Error("failure bookkeeping degraded for %s: %v", clientAddr, recordErr)
		}
		e.logger.Warn("failed login for %s from %s", username, clientAddr)
		return nil, model.ErrInvalidCredentials
	}

	if err := e.guard.CheckLockout(account); err != nil {
		return nil, err
	}

	successCtx, cancel := e.callCtx(ctx)
	err = e.guard.RecordSuccess(successCtx, account)
	cancel()
	if err != nil {
		return nil, err
	}

	issueCtx, cancel := e.callCtx(ctx)
	sess, err := e.sessions.Issue(issueCtx, account.Username, account.ID)
	cancel()
	if err != nil {
		return nil, err
	}

	e.logger.Info("successful login: %s", username)
	return sess, nil
}

// Logout revokes the session named by the token's subject. Decode is
// pure signature validation; a captured token stays cryptographically
// valid until its own expiry, and only presence-checked paths honor
// the revocation.
func (e *Engine) Logout(ctx context.Context, rawToken string) (string, error) {
	if rawToken == "" {
		return "", model.ErrMissingToken
	}

	claims, err := e.sessions.Decode(rawToken)
	if err != nil {
		return "", model.ErrInvalidToken
	}

	revokeCtx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.sessions.Revoke(revokeCtx, claims.Username()); err != nil {
		return "", err
	}

	e.logger.Info("user logged out: %s", claims.Username())
	return claims.Username(), nil
}

// HealthStatus is the liveness report for the auth service.
type HealthStatus struct {
	Status            string    `json:"status"`
	StoreConnectivity string    `json:"store_connectivity"`
	Timestamp         time.Time `json:"timestamp"`
}

// Health pings the ephemeral store. Connectivity loss degrades the
// report; it never produces an error.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	pingCtx, cancel := e.callCtx(ctx)
	defer cancel()

	status := HealthStatus{
		Status:            "ok",
		StoreConnectivity: "connected",
		Timestamp:         time.Now().UTC(),
	}
	if err := e.store.Ping(pingCtx); err != nil {
		e.logger.Warn("ephemeral store unreachable: %v", err)
		status.Status = "degraded"
		status.StoreConnectivity = "disconnected"
	}
	return status
}
