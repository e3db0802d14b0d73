package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler == nil {
			c.String(http.StatusServiceUnavailable, "metrics handler not initialized")
			return
		}
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// AuthMetrics records authentication outcomes
type AuthMetrics struct {
	logins        metric.Int64Counter
	lockouts      metric.Int64Counter
	revocations   metric.Int64Counter
	cacheFailures metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on the given provider
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	meter := provider.Meter("session-auth-service/auth")

	logins, err := meter.Int64Counter("auth_login_total",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create login counter: %w", err)
	}

	lockouts, err := meter.Int64Counter("auth_lockouts_total",
		metric.WithDescription("Accounts locked after repeated login failures"))
	if err != nil {
		return nil, fmt.Errorf("failed to create lockout counter: %w", err)
	}

	revocations, err := meter.Int64Counter("auth_tokens_revoked_total",
		metric.WithDescription("Revoked tokens by kind"))
	if err != nil {
		return nil, fmt.Errorf("failed to create revocation counter: %w", err)
	}

	cacheFailures, err := meter.Int64Counter("auth_revocation_cache_errors_total",
		metric.WithDescription("Revocation cache operations that failed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache error counter: %w", err)
	}

	return &AuthMetrics{
		logins:        logins,
		lockouts:      lockouts,
		revocations:   revocations,
		cacheFailures: cacheFailures,
	}, nil
}

// NewNoopAuthMetrics returns metrics that record nothing
func NewNoopAuthMetrics() *AuthMetrics {
	m, _ := NewAuthMetrics(noop.NewMeterProvider())
	return m
}

// Login counts a login attempt with the given outcome
func (m *AuthMetrics) Login(ctx context.Context, outcome string) {
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Lockout counts a newly locked account
func (m *AuthMetrics) Lockout(ctx context.Context) {
	m.lockouts.Add(ctx, 1)
}

// TokensRevoked counts revoked tokens of a kind (access, refresh)
func (m *AuthMetrics) TokensRevoked(ctx context.Context, kind string, n int64) {
	if n <= 0 {
		return
	}
	m.revocations.Add(ctx, n, metric.WithAttributes(attribute.String("kind", kind)))
}

// CacheFailure counts a failed revocation cache operation
func (m *AuthMetrics) CacheFailure(ctx context.Context, op string) {
	m.cacheFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
