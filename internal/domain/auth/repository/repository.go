// Package repository declares the durable account store contract.
package repository

import (
	"context"

	"authgate/internal/domain/auth/model"
)

// Accounts is the durable per-user record store. Lookups return
// (nil, nil) when no account exists; callers branch on the explicit
// nil rather than a sentinel error.
type Accounts interface {
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	FindByID(ctx context.Context, id uint) (*model.Account, error)
	Create(ctx context.Context, account *model.Account) error
	Save(ctx context.Context, account *model.Account) error
	Count(ctx context.Context) (int64, error)
}
