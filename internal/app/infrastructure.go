package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/session-auth-service/internal/config"
	"github.com/prperemyshlev/session-auth-service/internal/events"
	"github.com/prperemyshlev/session-auth-service/internal/repository"
	"github.com/prperemyshlev/session-auth-service/pkg/database"
	"github.com/prperemyshlev/session-auth-service/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const serviceName = "session-auth-service"

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	Logger() *zap.Logger
	Events() events.Publisher
	Metrics() *observability.AuthMetrics
	MetricsHandler() http.Handler

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	events         events.Publisher
	metrics        *observability.AuthMetrics
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

var _ Infrastructure = &infrastructure{}

func NewInfrastructure(ctx context.Context, cfg config.Config) (*infrastructure, error) {
	i := &infrastructure{}

	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	i.logger = logger

	if err := i.init(ctx, cfg); err != nil {
		_ = i.close()
		_ = observability.Shutdown(ctx, i.meterProvider, i.logger)
		return nil, err
	}
	return i, nil
}

func (i *infrastructure) init(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.AutoMigrate {
		if err := repository.Migrate(cfg.Postgres.DSN()); err != nil {
			return fmt.Errorf("failed to migrate PostgreSQL: %w", err)
		}
		i.logger.Info("Database schema is up to date")
	}

	postgres, err := database.NewPostgres(ctx, cfg.Postgres.DSN(), database.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime.Duration,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	i.postgres = postgres

	redis, err := database.NewRedis(ctx, database.RedisOptions{
		Addr:        cfg.Redis.Address(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout.Duration,
		OpTimeout:   cfg.Redis.LookupTimeout.Duration,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	i.redis = redis

	meterProvider, metricsHandler, err := observability.InitTelemetry(serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	i.meterProvider = meterProvider
	i.metricsHandler = metricsHandler

	metrics, err := observability.NewAuthMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize auth metrics: %w", err)
	}
	i.metrics = metrics

	if cfg.AMQP.URL == "" {
		i.logger.Info("AMQP_URL not set, security events are discarded")
		i.events = events.NoopPublisher{}
		return nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, i.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to message broker: %w", err)
	}
	i.events = publisher

	return nil
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) Events() events.Publisher {
	return i.events
}

func (i *infrastructure) Metrics() *observability.AuthMetrics {
	return i.metrics
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

// close releases connections concurrently. Fields left nil by a failed init are skipped.
func (i *infrastructure) close() error {
	var closers []func() error
	if i.events != nil {
		closers = append(closers, i.events.Close)
	}
	if i.postgres != nil {
		closers = append(closers, i.postgres.Close)
	}
	if i.redis != nil {
		closers = append(closers, i.redis.Close)
	}

	errs := make(chan error, len(closers))
	for _, c := range closers {
		go func(c func() error) { errs <- c() }(c)
	}

	var joined []error
	for range closers {
		joined = append(joined, <-errs)
	}
	return errors.Join(joined...)
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	closeErr := i.close()
	return errors.Join(closeErr, observability.Shutdown(ctx, i.meterProvider, i.logger))
}
