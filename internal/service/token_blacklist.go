package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/session-auth-service/pkg/database"
	"github.com/prperemyshlev/session-auth-service/pkg/observability"
	"go.uber.org/zap"
)

const (
	blacklistKeyPrefix = "auth:blacklist:"
	blacklistValue     = "revoked"
	revokeRetryBackoff = 50 * time.Millisecond
)

// TokenBlacklistService is the Redis-backed revocation cache for access tokens.
//
// Lookups are availability-first: if Redis cannot answer within lookupTimeout
// the token is treated as not revoked and the failure is logged and counted.
type TokenBlacklistService struct {
	redis         *database.Redis
	lookupTimeout time.Duration
	retries       int
	metrics       *observability.AuthMetrics
	logger        *zap.Logger
}

// NewTokenBlacklistService creates a new token blacklist service
func NewTokenBlacklistService(
	redis *database.Redis,
	lookupTimeout time.Duration,
	retries int,
	metrics *observability.AuthMetrics,
	logger *zap.Logger,
) *TokenBlacklistService {
	if retries < 0 {
		retries = 0
	}
	return &TokenBlacklistService{
		redis:         redis,
		lookupTimeout: lookupTimeout,
		retries:       retries,
		metrics:       metrics,
		logger:        logger,
	}
}

func blacklistKey(token string) string {
	return blacklistKeyPrefix + token
}

// Revoke marks the token as revoked for ttl. A non-positive ttl means the token
// has already expired and nothing is stored. The write is idempotent, so it is
// retried on failure.
func (s *TokenBlacklistService) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to add token to blacklist: %w", ctx.Err())
			case <-time.After(revokeRetryBackoff * time.Duration(attempt)):
			}
		}

		err = s.redis.Client.Set(ctx, blacklistKey(token), blacklistValue, ttl).Err()
		if err == nil {
			return nil
		}
	}

	s.metrics.CacheFailure(ctx, "revoke")
	return fmt.Errorf("failed to add token to blacklist after %d attempts: %w", s.retries+1, err)
}

// IsRevoked reports whether the token has been revoked
func (s *TokenBlacklistService) IsRevoked(ctx context.Context, token string) bool {
	if s.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lookupTimeout)
		defer cancel()
	}

	exists, err := s.redis.Client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		s.metrics.CacheFailure(ctx, "lookup")
		s.logger.Warn("Revocation cache unavailable, treating token as not revoked", zap.Error(err))
		return false
	}

	return exists > 0
}
