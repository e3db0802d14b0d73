package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"id", "name", "email", "password_hash", "role", "password_updated_at",
	"first_login", "account_locked", "login_fail_count", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*database.Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return &database.Postgres{DB: db}, mock
}

func TestUserRepository_Create(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Jane", "jane@example.com", "hash", "ROLE_ESG_PM", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

	user := &domain.User{
		Name:         "Jane",
		Email:        "jane@example.com",
		PasswordHash: "hash",
		Role:         domain.RolePM,
		FirstLogin:   true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, int64(11), user.ID)
	assert.Equal(t, now, user.CreatedAt)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &domain.User{Email: "dup@example.com", Role: domain.RoleUser})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("Jane@Example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(int64(3), "Jane", "Jane@Example.com", "hash", "ROLE_ADMIN", now, false, true, 5, now, now))

	user, err := repo.GetByEmail(context.Background(), "Jane@Example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.True(t, user.AccountLocked)
	assert.Equal(t, 5, user.LoginFailCount)
	require.NotNil(t, user.PasswordUpdatedAt)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByID_UnknownRole(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(int64(3), "Jane", "j@e.co", "hash", "ROLE_ROOT", nil, false, false, 0, now, now))

	_, err := repo.GetByID(context.Background(), 3)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestUserRepository_RecordLoginFailure(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)

	mock.ExpectQuery(regexp.QuoteMeta("SET login_fail_count = login_fail_count + 1")).
		WithArgs(int64(7), 5).
		WillReturnRows(sqlmock.NewRows([]string{"login_fail_count", "account_locked"}).AddRow(5, true))

	failure, err := repo.RecordLoginFailure(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.LoginFailure{FailCount: 5, Locked: true}, failure)
}

func TestUserRepository_RecordLoginFailure_IgnoresContextTransaction(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SET login_fail_count = login_fail_count + 1")).
		WillReturnRows(sqlmock.NewRows([]string{"login_fail_count", "account_locked"}).AddRow(1, false))
	mock.ExpectRollback()

	boom := errors.New("outer operation failed")
	err := pg.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := repo.RecordLoginFailure(ctx, 7, 5)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET password_hash = $2, password_updated_at = $3, first_login = FALSE")).
		WithArgs(int64(9), "new-hash", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), 9, "new-hash", at))
}

func TestUserRepository_Unlock_NotFound(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)

	mock.ExpectExec(regexp.QuoteMeta("SET account_locked = FALSE, login_fail_count = 0")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Unlock(context.Background(), 9), ErrNotFound)
}

func TestUserRepository_ResetLoginFailures(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND account_locked = FALSE")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.ResetLoginFailures(context.Background(), 3))
}

func TestUserRepository_ResetLoginFailures_LockedRow(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewUserRepository(pg)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND account_locked = FALSE")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.ResetLoginFailures(context.Background(), 3), ErrAccountLocked)
}
