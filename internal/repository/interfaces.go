package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error
	// RecordLoginFailure increments the failure counter and locks the account once
	// it reaches maxAttempts. It always commits on its own, even when ctx carries
	// a transaction.
	RecordLoginFailure(ctx context.Context, id int64, maxAttempts int) (domain.LoginFailure, error)
	ResetLoginFailures(ctx context.Context, id int64) error
	Unlock(ctx context.Context, id int64) error
}

// TokenRepository is the durable refresh token store
type TokenRepository interface {
	Save(ctx context.Context, token *domain.RefreshToken) error
	// FindValid returns the non-revoked row for token. Expiry is not checked.
	FindValid(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, userID int64, token string) (int64, error)
	RevokeAll(ctx context.Context, userID int64) (int64, error)
	CountValid(ctx context.Context, userID int64, now time.Time) (int64, error)
	PurgeExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error)
}

// Transactor runs a function inside a single database transaction
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
