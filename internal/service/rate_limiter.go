package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/session-auth-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "auth:ratelimit:"

// RateLimitDecision is the outcome of one rate limit check
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// slidingWindowScript trims the window, then records the request unless the
// window is full. It returns {allowed, used before this request, retry after ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local used = redis.call('ZCARD', key)
if used >= limit then
	local retry = window
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if oldest[2] then
		retry = tonumber(oldest[2]) + window - now
	end
	return {0, used, retry}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, tonumber(ARGV[5]))
return {1, used, 0}
`)

// RateLimiter is a sliding window log limiter shared by all instances through Redis
type RateLimiter struct {
	redis  *database.Redis
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and key
func NewRateLimiter(redis *database.Redis, limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{redis: redis, limit: limit, window: window, now: time.Now}
}

// Allow records a request for key unless the window is already full.
// Rejected requests are not recorded. The check and the write run as one
// script, so concurrent requests cannot overshoot the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (RateLimitDecision, error) {
	result, err := slidingWindowScript.Run(ctx, r.redis.Client,
		[]string{rateLimitKeyPrefix + key},
		r.now().UnixMilli(),
		r.window.Milliseconds(),
		r.limit,
		uuid.NewString(),
		(r.window + time.Minute).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("failed to evaluate rate limit window: %w", err)
	}
	if len(result) != 3 {
		return RateLimitDecision{}, fmt.Errorf("unexpected rate limit reply: %v", result)
	}

	used := int(result[1])
	if result[0] == 0 {
		retryAfter := time.Duration(result[2]) * time.Millisecond
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return RateLimitDecision{Limit: r.limit, RetryAfter: retryAfter}, nil
	}

	return RateLimitDecision{
		Allowed:   true,
		Limit:     r.limit,
		Remaining: r.limit - used - 1,
	}, nil
}
