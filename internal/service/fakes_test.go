package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/internal/events"
	"github.com/prperemyshlev/session-auth-service/internal/repository"
	"github.com/prperemyshlev/session-auth-service/internal/utils"
	"github.com/prperemyshlev/session-auth-service/pkg/database"
	"github.com/prperemyshlev/session-auth-service/pkg/observability"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSigningKey = "unit-signing-key-0123456789abcdefghij"

var errStorageDown = errors.New("connection refused")

// fakeUserRepo keeps users in memory. RecordLoginFailure is atomic under the
// mutex, like the single UPDATE statement it stands in for.
type fakeUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*domain.User
	failErr error
	// afterRead mutates the stored row once GetByEmail has taken its snapshot
	afterRead func(stored *domain.User)
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	for _, u := range r.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.byID[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			copied := *u
			if r.afterRead != nil {
				r.afterRead(u)
			}
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordUpdatedAt = &updatedAt
	u.FirstLogin = false
	return nil
}

func (r *fakeUserRepo) RecordLoginFailure(_ context.Context, id int64, maxAttempts int) (domain.LoginFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return domain.LoginFailure{}, r.failErr
	}
	u, ok := r.byID[id]
	if !ok {
		return domain.LoginFailure{}, repository.ErrNotFound
	}
	u.LoginFailCount++
	u.AccountLocked = u.AccountLocked || u.LoginFailCount >= maxAttempts
	return domain.LoginFailure{FailCount: u.LoginFailCount, Locked: u.AccountLocked}, nil
}

func (r *fakeUserRepo) ResetLoginFailures(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.AccountLocked {
		return repository.ErrAccountLocked
	}
	u.LoginFailCount = 0
	return nil
}

func (r *fakeUserRepo) Unlock(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.AccountLocked = false
	u.LoginFailCount = 0
	return nil
}

func (r *fakeUserRepo) get(t *testing.T, id int64) domain.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	require.True(t, ok, "user %d not stored", id)
	return *u
}

type fakeTokenRepo struct {
	mu      sync.Mutex
	nextID  int64
	tokens  []*domain.RefreshToken
	saveErr error
}

func (r *fakeTokenRepo) Save(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, t := range r.tokens {
		if t.Token == token.Token {
			return repository.ErrDuplicateToken
		}
	}
	r.nextID++
	token.ID = r.nextID
	stored := *token
	r.tokens = append(r.tokens, &stored)
	return nil
}

func (r *fakeTokenRepo) FindValid(_ context.Context, token string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token && !t.Revoked {
			copied := *t
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTokenRepo) Revoke(_ context.Context, userID int64, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && t.Token == token && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) RevokeAll(_ context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) CountValid(_ context.Context, userID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && t.Valid(now) {
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) PurgeExpiredOrRevoked(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tokens[:0]
	var n int64
	for _, t := range r.tokens {
		if t.Valid(now) {
			kept = append(kept, t)
			continue
		}
		n++
	}
	r.tokens = kept
	return n, nil
}

// fakeTx runs fn directly; the fakes have no rollback.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc       AuthService
	users     *fakeUserRepo
	tokens    *fakeTokenRepo
	tx        *fakeTx
	codec     *utils.JWTManager
	hasher    *utils.PasswordHasher
	blacklist *TokenBlacklistService
	redis     *miniredis.Miniredis
	events    *recordingPublisher
	clock     *testClock
}

const testMaxAttempts = 3

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithMaxAttempts(t, testMaxAttempts)
}

func newTestEnvWithMaxAttempts(t *testing.T, maxAttempts int) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Now().Truncate(time.Second)}
	logger := zap.NewNop()

	codec, err := utils.NewJWTManager(testSigningKey, 15*time.Minute, 24*time.Hour, logger, utils.WithClock(clock.Now))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	metrics := observability.NewNoopAuthMetrics()
	blacklist := NewTokenBlacklistService(database.NewRedisFromClient(client), 200*time.Millisecond, 0, metrics, logger)

	env := &testEnv{
		users:     newFakeUserRepo(),
		tokens:    &fakeTokenRepo{},
		tx:        &fakeTx{},
		codec:     codec,
		hasher:    utils.NewPasswordHasher(4),
		blacklist: blacklist,
		redis:     mr,
		events:    &recordingPublisher{},
		clock:     clock,
	}
	env.svc = NewAuthService(Dependencies{
		Users:      env.users,
		Tokens:     env.tokens,
		Tx:         env.tx,
		Codec:      codec,
		Hasher:     env.hasher,
		Revocation: blacklist,
		Attempts:   NewLoginAttemptTracker(env.users, maxAttempts),
		Events:     env.events,
		Metrics:    metrics,
		Logger:     logger,
		Clock:      clock.Now,
	})
	return env
}

// seedUser stores a user with the given password and returns its id
func (e *testEnv) seedUser(t *testing.T, email, password string, role domain.Role, firstLogin bool) int64 {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	user := &domain.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstLogin:   firstLogin,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user.ID
}

func requireKind(t *testing.T, err error, kind ErrorKind) *AuthError {
	t.Helper()
	require.Error(t, err)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %T: %v", err, err)
	require.Equal(t, kind.Code(), authErr.Kind.Code(), "unexpected error: %v", err)
	return authErr
}
