package storage

import (
	"context"

	"gorm.io/gorm"

	"authgate/internal/domain/auth/model"
	"authgate/internal/domain/auth/repository"
	"authgate/internal/platform/errors"
)

// accountRepository is the gorm-backed account store.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an account repository over the given database.
func NewAccountRepository(db *gorm.DB) repository.Accounts {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	var account model.Account
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "account.find_by_username", "failed to find account", err)
	}
	return &account, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id uint) (*model.Account, error) {
	var account model.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "account.find_by_id", "failed to find account", err)
	}
	return &account, nil
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "account.create", "failed to create account", err)
	}
	return nil
}

func (r *accountRepository) Save(ctx context.Context, account *model.Account) error {
	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "account.save", "failed to save account", err)
	}
	return nil
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Account{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(errors.KindStorage, "account.count", "failed to count accounts", err)
	}
	return count, nil
}
