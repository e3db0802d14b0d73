package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Integration tests run against a disposable PostgreSQL:
//
//	GO_TEST_INTEGRATION=1 go test ./internal/repository -run Integration -count=1
func startPostgres(t *testing.T) *database.Postgres {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "auth"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/auth?sslmode=disable", host, port.Port())

	require.NoError(t, Migrate(dsn))
	require.NoError(t, Migrate(dsn), "re-running migrations must be a no-op")

	pg, err := database.NewPostgres(ctx, dsn, database.PoolConfig{MaxOpenConns: 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })

	return pg
}

func seedUser(t *testing.T, repos *Repositories, email string) *domain.User {
	t.Helper()
	user := &domain.User{Name: "Test", Email: email, PasswordHash: "hash", Role: domain.RoleUser}
	require.NoError(t, repos.User.Create(context.Background(), user))
	return user
}

func TestIntegration_ConcurrentLoginFailuresAreNotLost(t *testing.T) {
	repos := NewRepositories(startPostgres(t))
	user := seedUser(t, repos, "race@example.com")

	const workers = 4
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.User.RecordLoginFailure(context.Background(), user.ID, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repos.User.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.LoginFailCount)
	assert.False(t, got.AccountLocked)

	failure, err := repos.User.RecordLoginFailure(context.Background(), user.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.LoginFailure{FailCount: 5, Locked: true}, failure)
	assert.ErrorIs(t, repos.User.ResetLoginFailures(context.Background(), user.ID), ErrAccountLocked)

	require.NoError(t, repos.User.Unlock(context.Background(), user.ID))
	got, err = repos.User.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, got.AccountLocked)
	assert.Zero(t, got.LoginFailCount)
}

func TestIntegration_LoginFailureSurvivesRolledBackTransaction(t *testing.T) {
	pg := startPostgres(t)
	repos := NewRepositories(pg)
	user := seedUser(t, repos, "rollback@example.com")

	err := pg.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := repos.User.RecordLoginFailure(ctx, user.ID, 5); err != nil {
			return err
		}
		return fmt.Errorf("invalid credentials")
	})
	require.Error(t, err)

	got, err := repos.User.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LoginFailCount)
}

func TestIntegration_EmailIsCaseSensitive(t *testing.T) {
	repos := NewRepositories(startPostgres(t))
	seedUser(t, repos, "Case@Example.com")

	_, err := repos.User.GetByEmail(context.Background(), "case@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	dup := &domain.User{Name: "Dup", Email: "Case@Example.com", PasswordHash: "h", Role: domain.RoleUser}
	assert.ErrorIs(t, repos.User.Create(context.Background(), dup), ErrDuplicateEmail)
}

func TestIntegration_RefreshTokenLifecycle(t *testing.T) {
	repos := NewRepositories(startPostgres(t))
	ctx := context.Background()
	alice := seedUser(t, repos, "alice@example.com")
	bob := seedUser(t, repos, "bob@example.com")
	now := time.Now()

	save := func(owner *domain.User, token string, expires time.Time) {
		require.NoError(t, repos.Token.Save(ctx, &domain.RefreshToken{Token: token, UserID: owner.ID, ExpiresAt: expires}))
	}
	save(alice, "alice-1", now.Add(time.Hour))
	save(alice, "alice-2", now.Add(time.Hour))
	save(alice, "alice-old", now.Add(-time.Hour))
	save(bob, "bob-1", now.Add(time.Hour))

	n, err := repos.Token.CountValid(ctx, alice.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repos.Token.Revoke(ctx, bob.ID, "alice-1")
	require.NoError(t, err)
	assert.Zero(t, n, "a foreign owner must not revoke the token")

	n, err = repos.Token.Revoke(ctx, alice.ID, "alice-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repos.Token.Revoke(ctx, alice.ID, "alice-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repos.Token.FindValid(ctx, "alice-1")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err = repos.Token.RevokeAll(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stillValid, err := repos.Token.FindValid(ctx, "bob-1")
	require.NoError(t, err)
	assert.True(t, stillValid.Valid(now))

	n, err = repos.Token.PurgeExpiredOrRevoked(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repos.Token.CountValid(ctx, bob.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
