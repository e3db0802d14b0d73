package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/session-auth-service/internal/repository"
	"go.uber.org/zap"
)

// TokenPurger periodically deletes refresh tokens that can never be used again
type TokenPurger struct {
	tokens   repository.TokenRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenPurger creates a purger running every interval
func NewTokenPurger(tokens repository.TokenRepository, interval time.Duration, logger *zap.Logger) *TokenPurger {
	return &TokenPurger{tokens: tokens, interval: interval, logger: logger, now: time.Now}
}

// Run purges once immediately and then on every tick until ctx is done
func (p *TokenPurger) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("Token housekeeping disabled")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PurgeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce deletes expired and revoked refresh tokens
func (p *TokenPurger) PurgeOnce(ctx context.Context) int64 {
	deleted, err := p.tokens.PurgeExpiredOrRevoked(ctx, p.now())
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("Failed to purge refresh tokens", zap.Error(err))
		}
		return 0
	}

	if deleted > 0 {
		p.logger.Info("Purged refresh tokens", zap.Int64("deleted", deleted))
	}
	return deleted
}
