package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/pkg/database"
)

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *database.Postgres
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *database.Postgres) TokenRepository {
	return &tokenRepository{db: db}
}

// Save persists a newly issued refresh token
func (r *tokenRepository) Save(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, device_info, expires_at, revoked)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id, created_at
	`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		token.Token,
		token.UserID,
		token.DeviceInfo,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to save refresh token: %w", ErrDuplicateToken)
		}
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	token.Revoked = false
	return nil
}

// FindValid retrieves a non-revoked refresh token by its value
func (r *tokenRepository) FindValid(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, token, user_id, device_info, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked = FALSE
	`

	rt := &domain.RefreshToken{}
	var deviceInfo sql.NullString

	err := r.db.Conn(ctx).QueryRowContext(ctx, query, token).Scan(
		&rt.ID,
		&rt.Token,
		&rt.UserID,
		&deviceInfo,
		&rt.ExpiresAt,
		&rt.Revoked,
		&rt.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	if deviceInfo.Valid {
		rt.DeviceInfo = &deviceInfo.String
	}

	return rt, nil
}

// Revoke revokes the row matching both owner and token. Revoking an already
// revoked or foreign token affects zero rows and is not an error.
func (r *tokenRepository) Revoke(ctx context.Context, userID int64, token string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND token = $2 AND revoked = FALSE
	`

	return r.exec(ctx, "revoke refresh token", query, userID, token)
}

// RevokeAll revokes every live refresh token of the user
func (r *tokenRepository) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`

	return r.exec(ctx, "revoke user refresh tokens", query, userID)
}

// CountValid counts the user's non-revoked, unexpired refresh tokens
func (r *tokenRepository) CountValid(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
	`

	var count int64
	if err := r.db.Conn(ctx).QueryRowContext(ctx, query, userID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count valid refresh tokens: %w", err)
	}

	return count, nil
}

// PurgeExpiredOrRevoked deletes rows that can never be valid again
func (r *tokenRepository) PurgeExpiredOrRevoked(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE revoked = TRUE OR expires_at <= $1`

	return r.exec(ctx, "purge refresh tokens", query, now)
}

func (r *tokenRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
