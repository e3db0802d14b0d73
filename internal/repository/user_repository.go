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

const userColumns = `id, name, email, password_hash, role, password_updated_at,
		first_login, account_locked, login_fail_count, created_at, updated_at`

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

// Create inserts the user and fills in ID and timestamps
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (name, email, password_hash, role, first_login)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.FirstLogin,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.Conn(ctx).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found by email: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %d not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// UpdatePassword stores a new hash, stamps the change time and clears first-login
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_updated_at = $3, first_login = FALSE, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id, passwordHash, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return expectAffected(result, fmt.Sprintf("user with id %d", id))
}

// RecordLoginFailure atomically increments the failure counter. The statement runs
// on the pool rather than a context transaction so the increment is committed even
// if the caller's unit of work is rolled back. The row lock taken by UPDATE keeps
// concurrent failures from losing increments.
func (r *userRepository) RecordLoginFailure(ctx context.Context, id int64, maxAttempts int) (domain.LoginFailure, error) {
	query := `
		UPDATE users
		SET login_fail_count = login_fail_count + 1,
		    account_locked = account_locked OR login_fail_count + 1 >= $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING login_fail_count, account_locked
	`

	var failure domain.LoginFailure
	err := r.db.DB.QueryRowContext(ctx, query, id, maxAttempts).Scan(&failure.FailCount, &failure.Locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LoginFailure{}, fmt.Errorf("user with id %d not found: %w", id, ErrNotFound)
		}
		return domain.LoginFailure{}, fmt.Errorf("failed to record login failure: %w", err)
	}

	return failure, nil
}

// ResetLoginFailures zeroes the failure counter after a successful login. It
// returns ErrAccountLocked when a concurrent failure locked the row after the
// caller read it.
func (r *userRepository) ResetLoginFailures(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET login_fail_count = 0, updated_at = NOW()
		WHERE id = $1 AND account_locked = FALSE
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user with id %d: %w", id, ErrAccountLocked)
	}

	return nil
}

// Unlock clears the lock flag and the failure counter
func (r *userRepository) Unlock(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET account_locked = FALSE, login_fail_count = 0, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to unlock user: %w", err)
	}

	return expectAffected(result, fmt.Sprintf("user with id %d", id))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var role string
	var passwordUpdatedAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&passwordUpdatedAt,
		&user.FirstLogin,
		&user.AccountLocked,
		&user.LoginFailCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role, err = domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	if passwordUpdatedAt.Valid {
		user.PasswordUpdatedAt = &passwordUpdatedAt.Time
	}

	return user, nil
}

func expectAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %w", what, ErrNotFound)
	}

	return nil
}
