package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_auth_service.go -package=mocks github.com/prperemyshlev/session-auth-service/internal/service AuthService

// AuthService defines the session lifecycle operations
type AuthService interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AccessTokenResult, error)
	Logout(ctx context.Context, identity *domain.Identity, refreshToken string) error
	LogoutAll(ctx context.Context, identity *domain.Identity) (int64, error)
	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error
	SetPassword(ctx context.Context, userID int64, newPassword string) error
	CurrentUser(ctx context.Context, userID int64) (*UserProfile, error)
	// Authenticate resolves a bearer token into an identity, checking the
	// revocation cache before the signature.
	Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error)

	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	CreateUser(ctx context.Context, actor *domain.Identity, input CreateUserInput) (*domain.User, error)
	UnlockUser(ctx context.Context, actor *domain.Identity, userID int64) error
	ActiveSessions(ctx context.Context, userID int64) (int64, error)
	EnsureAdmin(ctx context.Context, name, email, password string) error
}

// TokenCodec issues and verifies signed tokens
type TokenCodec interface {
	GenerateAccessToken(userID int64, email string, role domain.Role) (string, time.Time, error)
	GenerateRefreshToken(userID int64) (string, time.Time, error)
	ValidateAccessToken(token string) (*domain.AccessClaims, error)
	RemainingLifetime(token string) (time.Duration, error)
	GetAccessTokenExpiry() int
}

// PasswordHasher hashes and verifies credentials
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// RevocationCache is the short-lived denylist of access tokens
type RevocationCache interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) bool
}
