package service

import (
	"context"
	"testing"
	"time"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokenPurger_PurgeOnce(t *testing.T) {
	tokens := &fakeTokenRepo{}
	now := time.Now()
	ctx := context.Background()

	require.NoError(t, tokens.Save(ctx, &domain.RefreshToken{Token: "live", UserID: 1, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, tokens.Save(ctx, &domain.RefreshToken{Token: "expired", UserID: 1, ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, tokens.Save(ctx, &domain.RefreshToken{Token: "revoked", UserID: 2, ExpiresAt: now.Add(time.Hour), Revoked: true}))

	purger := NewTokenPurger(tokens, time.Hour, zap.NewNop())
	purger.now = func() time.Time { return now }

	assert.Equal(t, int64(2), purger.PurgeOnce(ctx))
	_, err := tokens.FindValid(ctx, "live")
	assert.NoError(t, err)
	assert.Zero(t, purger.PurgeOnce(ctx))
}

func TestTokenPurger_RunStopsWithContext(t *testing.T) {
	tokens := &fakeTokenRepo{}
	require.NoError(t, tokens.Save(context.Background(), &domain.RefreshToken{Token: "expired", UserID: 1, ExpiresAt: time.Now().Add(-time.Hour)}))

	purger := NewTokenPurger(tokens, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		purger.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		tokens.mu.Lock()
		defer tokens.mu.Unlock()
		return len(tokens.tokens) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop")
	}
}
