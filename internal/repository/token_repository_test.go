package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository_Save(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)
	expires := time.Now().Add(time.Hour)
	device := "curl/8.0"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs("tok", int64(1), device, expires).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), time.Now()))

	rt := &domain.RefreshToken{Token: "tok", UserID: 1, DeviceInfo: &device, ExpiresAt: expires}
	require.NoError(t, repo.Save(context.Background(), rt))
	assert.Equal(t, int64(5), rt.ID)
}

func TestTokenRepository_Save_Duplicate(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Save(context.Background(), &domain.RefreshToken{Token: "tok", UserID: 1})
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestTokenRepository_FindValid(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)
	expires := time.Now().Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token = $1 AND revoked = FALSE")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "user_id", "device_info", "expires_at", "revoked", "created_at"}).
			AddRow(int64(5), "tok", int64(1), nil, expires, false, time.Now()))

	rt, err := repo.FindValid(context.Background(), "tok")
	require.NoError(t, err)
	assert.Nil(t, rt.DeviceInfo)
	assert.False(t, rt.Valid(time.Now()), "expired rows are returned and must be re-checked by the caller")
}

func TestTokenRepository_FindValid_NotFound(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token = $1 AND revoked = FALSE")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindValid(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepository_Revoke_IsScopedAndIdempotent(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)
	query := regexp.QuoteMeta("WHERE user_id = $1 AND token = $2 AND revoked = FALSE")

	mock.ExpectExec(query).WithArgs(int64(1), "tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(int64(1), "tok").WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.Revoke(context.Background(), 1, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Revoke(context.Background(), 1, "tok")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTokenRepository_RevokeAll(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)

	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $1 AND revoked = FALSE")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestTokenRepository_CountValid(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(1), now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := repo.CountValid(context.Background(), 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTokenRepository_PurgeExpiredOrRevoked(t *testing.T) {
	pg, mock := newMockDB(t)
	repo := NewTokenRepository(pg)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE revoked = TRUE OR expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PurgeExpiredOrRevoked(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
