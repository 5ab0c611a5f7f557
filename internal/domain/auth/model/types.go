package model

import (
	"errors"
	"time"
)

// Account is the durable per-user record backing credential checks and
// lockout bookkeeping. Invariant: Locked implies FailedLoginAttempts has
// reached the lockout threshold.
type Account struct {
	ID                  uint       `gorm:"primaryKey"                             json:"id"`
	Username            string     `gorm:"type:varchar(64);uniqueIndex;not null"  json:"username"`
	Email               string     `gorm:"type:varchar(255);index"                json:"email,omitempty"`
	PasswordHash        string     `gorm:"type:varchar(255);not null"             json:"-"`
	FailedLoginAttempts int        `gorm:"not null;default:0"                     json:"-"`
	Locked              bool       `gorm:"not null;default:false"                 json:"-"`
	LockedUntil         *time.Time `                                              json:"-"`
	LastLogin           *time.Time `                                              json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `                                              json:"createdAt"`
	UpdatedAt           time.Time  `                                              json:"updatedAt"`
}

// TableName keeps the legacy table name used by existing deployments.
func (Account) TableName() string { return "users" }

// Logger provides the minimal logging contract required by the auth domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Outcome sentinels for the login/logout protocol. Transport maps these
// to status codes; anything else stays inside the engine.
var (
	ErrRateLimited        = errors.New("too many login attempts")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingToken       = errors.New("no token provided")
	ErrServiceDegraded    = errors.New("authentication service degraded")
)
