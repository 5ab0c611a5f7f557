// Package guard owns the rate-limit and lockout decisions on the
// credential-check path. Rate limiting is per client address and
// independent of account existence; lockout is per account and
// cumulative across addresses.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/repository"
	"authgate/internal/domain/auth/store"
)

const rateLimitPrefix = "rate_limit:"

const (
	defaultMaxAttempts      = 5
	defaultWindow           = 15 * time.Minute
	defaultLockoutThreshold = 5
)

// Options encapsulates the dependencies required to construct a Guard.
type Options struct {
	Store            store.Store
	Accounts         repository.Accounts
	Logger           model.Logger
	MaxAttempts      int
	Window           time.Duration
	LockoutThreshold int
}

// Guard evaluates and records abuse signals for login attempts.
type Guard struct {
	store            store.Store
	accounts         repository.Accounts
	logger           model.Logger
	maxAttempts      int
	window           time.Duration
	lockoutThreshold int
}

// New wires a Guard using the supplied options.
func New(opts Options) (*Guard, error) {
	if opts.Store == nil {
		return nil, errors.New("abuse guard requires an ephemeral store")
	}
	if opts.Accounts == nil {
		return nil, errors.New("abuse guard requires an account store")
	}
	if opts.Logger == nil {
		return nil, errors.New("abuse guard requires a logger")
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	threshold := opts.LockoutThreshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}
	return &Guard{
		store:            opts.Store,
		accounts:         opts.Accounts,
		logger:           opts.Logger,
		maxAttempts:      maxAttempts,
		window:           window,
		lockoutThreshold: threshold,
	}, nil
}

func rateLimitKey(clientAddr string) string {
	return rateLimitPrefix + clientAddr
}

// CheckRateLimit denies when the address has exhausted its attempt
// budget for the current window. The read is side-effect free; store
// failures fail closed as ErrServiceDegraded.
func (g *Guard) CheckRateLimit(ctx context.Context, clientAddr string) error {
	raw, ok, err := g.store.Get(ctx, rateLimitKey(clientAddr))
	if err != nil {
		g.logger.Error("rate limit read failed for %s: %v", clientAddr, err)
		return fmt.Errorf("%w: rate limit unavailable", model.ErrServiceDegraded)
	}

	// Absent counter means no attempts this window.
	attempts := 0
	if ok {
		attempts, err = strconv.Atoi(raw)
		if err != nil {
			g.logger.Error("malformed rate limit counter for %s: %q", clientAddr, raw)
			return fmt.Errorf("%w: rate limit unavailable", model.ErrServiceDegraded)
		}
	}

	if attempts >= g.maxAttempts {
		g.logger.Warn("rate limit exceeded from address %s", clientAddr)
		return model.ErrRateLimited
	}
	return nil
}

// RecordFailure bumps the address counter (arming the window expiry on
// creation only) and, when an account is known, advances its
// failed-attempt count toward lockout.
func (g *Guard) RecordFailure(ctx context.Context, clientAddr string, account *model.Account) error {
	if _, err := g.store.Increment(ctx, rateLimitKey(clientAddr), g.window); err != nil {
		g.logger.Error("rate limit increment failed for %s: %v", clientAddr, err)
		return fmt.Errorf("%w: rate limit unavailable", model.ErrServiceDegraded)
	}

	if account == nil {
		return nil
	}

	account.FailedLoginAttempts++
	if account.FailedLoginAttempts >= g.lockoutThreshold && !account.Locked {
		account.Locked = true
		g.logger.Warn("account locked: %s", account.Username)
	}
	if err := g.accounts.Save(ctx, account); err != nil {
		g.logger.Error("failed persisting failure for %s: %v", account.Username, err)
		return fmt.Errorf("%w: account store unavailable", model.ErrServiceDegraded)
	}
	return nil
}

// CheckLockout denies when the account is locked.
func (g *Guard) CheckLockout(account *model.Account) error {
	if account != nil && account.Locked {
		g.logger.Warn("login attempt to locked account: %s", account.Username)
		return model.ErrAccountLocked
	}
	return nil
}

// RecordSuccess resets the failed-attempt counter and stamps the login.
func (g *Guard) RecordSuccess(ctx context.Context, account *model.Account) error {
	now := time.Now()
	account.FailedLoginAttempts = 0
	account.LastLogin = &now
	if err := g.accounts.Save(ctx, account); err != nil {
		g.logger.Error("failed persisting success for %s: %v", account.Username, err)
		return fmt.Errorf("%w: account store unavailable", model.ErrServiceDegraded)
	}
	return nil
}
