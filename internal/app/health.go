package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the health check pings
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	deps   map[string]Pinger
	logger *zap.Logger
}

func NewHealthChecker(deps map[string]Pinger, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		deps:   deps,
		logger: logger,
	}
}

func (h *HealthChecker) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	errs := make(chan error, len(h.deps))
	for name, dep := range h.deps {
		go func(name string, dep Pinger) {
			if err := dep.Ping(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
				return
			}
			errs <- nil
		}(name, dep)
	}

	var joined []error
	for range h.deps {
		joined = append(joined, <-errs)
	}
	return errors.Join(joined...)
}

func (h *HealthChecker) Handler(c *gin.Context) {
	if err := h.check(c.Request.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
	})
}
