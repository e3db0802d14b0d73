package handler

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/session-auth-service/internal/service"
	"go.uber.org/zap"
)

// Limiter decides whether a request for key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (service.RateLimitDecision, error)
}

// RateLimitMiddleware limits requests per client IP and route. Limiter errors fail open.
func RateLimitMiddleware(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + ":" + c.ClientIP()

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds())))
			c.Header("Retry-After", retryAfter)
			c.Header("X-RateLimit-Retry-After", retryAfter)
			abortWithKind(c, service.KindRateLimited, "too many requests, try again later", nil)
			return
		}

		c.Next()
	}
}
