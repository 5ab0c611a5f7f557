package storage

import (
	"context"

	"authgate/internal/domain/auth/credential"
	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/repository"
	"authgate/internal/platform/config"
	"authgate/internal/platform/errors"
)

// EnsureInitialAdmin seeds a first account when the users table is empty.
// An already-populated table is left untouched so redeploys never reset
// credentials.
func EnsureInitialAdmin(ctx context.Context, accounts repository.Accounts, verifier *credential.Verifier, cfg config.InitialAdminConfig, logger model.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	count, err := accounts.Count(ctx)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "seed.ensure_initial_admin", "failed to count accounts", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := verifier.Hash(cfg.Password)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "seed.ensure_initial_admin", "failed to hash admin password", err)
	}

	account := &model.Account{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: hash,
	}
	if err := accounts.Create(ctx, account); err != nil {
		return errors.Wrap(errors.KindStorage, "seed.ensure_initial_admin", "failed to create admin account", err)
	}

	logger.Info("seeded initial admin account username=%s", cfg.Username)
	return nil
}
