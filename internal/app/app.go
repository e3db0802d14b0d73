package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/session-auth-service/internal/config"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/internal/handler"
	"github.com/prperemyshlev/session-auth-service/internal/repository"
	"github.com/prperemyshlev/session-auth-service/internal/service"
	"github.com/prperemyshlev/session-auth-service/internal/utils"
	"github.com/prperemyshlev/session-auth-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra       Infrastructure
	config      *config.Config
	authService service.AuthService
	purger      *service.TokenPurger
	router      *gin.Engine
	server      *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager, err := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	blacklistService := service.NewTokenBlacklistService(
		infra.Redis(),
		cfg.Redis.LookupTimeout.Duration,
		cfg.Redis.RevokeRetries,
		infra.Metrics(),
		logger,
	)
	rateLimiter := service.NewRateLimiter(infra.Redis(), cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration)
	healthChecker := NewHealthChecker(map[string]Pinger{
		"postgres": infra.Postgres(),
		"redis":    infra.Redis(),
	}, logger)

	authService := service.NewAuthService(service.Dependencies{
		Users:      repos.User,
		Tokens:     repos.Token,
		Tx:         repos.Tx,
		Codec:      jwtManager,
		Hasher:     utils.NewPasswordHasher(cfg.Security.BCryptCost),
		Revocation: blacklistService,
		Attempts:   service.NewLoginAttemptTracker(repos.User, cfg.Security.MaxLoginAttempts),
		Events:     infra.Events(),
		Metrics:    infra.Metrics(),
		Logger:     logger,
	})

	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	router := NewRouter(RouterConfig{
		CORS:           cfg.CORS,
		AuthService:    authService,
		RateLimiter:    rateLimiter,
		Health:         healthChecker,
		MetricsHandler: infra.MetricsHandler(),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:       infra,
		config:      cfg,
		authService: authService,
		purger:      service.NewTokenPurger(repos.Token, cfg.Housekeeping.Interval.Duration, logger),
		router:      router,
		server:      srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// RouterConfig holds what the HTTP routes are built from
type RouterConfig struct {
	CORS           config.CORSConfig
	AuthService    service.AuthService
	RateLimiter    handler.Limiter
	Health         *HealthChecker
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(rc RouterConfig) *gin.Engine {
	authHandler := handler.NewAuthHandler(rc.AuthService, rc.Logger)
	adminHandler := handler.NewAdminHandler(rc.AuthService, rc.Logger)

	router := gin.New()
	router.Use(handler.RecoveryMiddleware(rc.Logger))
	router.Use(handler.RequestIDMiddleware())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(rc.Logger))
	router.Use(handler.CORSMiddleware(rc.CORS.AllowedOrigins, rc.CORS.AllowedMethods, rc.CORS.AllowedHeaders))
	router.Use(handler.Authenticator(rc.AuthService, rc.Logger))

	router.GET("/metrics", observability.PrometheusHandler(rc.MetricsHandler))
	if rc.Health != nil {
		router.GET("/health", rc.Health.Handler)
	}

	rateLimit := handler.RateLimitMiddleware(rc.RateLimiter, rc.Logger)
	requireAuth := handler.RequireAuth()

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", rateLimit, authHandler.Register)
			auth.POST("/login", rateLimit, authHandler.Login)
			auth.POST("/refresh", rateLimit, authHandler.Refresh)
			auth.POST("/logout", requireAuth, authHandler.Logout)
			auth.POST("/logout-all", requireAuth, authHandler.LogoutAll)
			auth.POST("/change-password", requireAuth, authHandler.ChangePassword)
			auth.POST("/set-password", requireAuth, authHandler.SetPassword)
			auth.GET("/me", requireAuth, authHandler.GetMe)
		}

		admin := api.Group("/admin", handler.RequireRole(domain.RoleAdmin))
		{
			admin.POST("/users", adminHandler.CreateUser)
			admin.POST("/users/:id/unlock", adminHandler.UnlockUser)
			admin.GET("/users/:id/sessions", adminHandler.Sessions)
		}
	}

	return router
}

// bootstrap seeds the first administrator when credentials are configured
func (a *App) bootstrap(ctx context.Context) error {
	admin := a.config.Admin
	if !admin.Enabled() {
		return nil
	}
	if err := a.authService.EnsureAdmin(ctx, admin.Name, admin.Email, admin.Password); err != nil {
		return fmt.Errorf("failed to bootstrap administrator: %w", err)
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	logger := a.infra.Logger()

	if err := a.bootstrap(ctx); err != nil {
		return errors.Join(err, a.Shutdown())
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		a.purger.Run(bgCtx)
	}()

	errChan := make(chan error, 1)

	go func() {
		logger.Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		logger.Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		logger.Info("Application stopped by context")
	}

	stopBackground()
	background.Wait()

	if err := a.Shutdown(); err != nil {
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	logger := a.infra.Logger()
	logger.Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	serverErr := a.server.Shutdown(ctx)
	if serverErr != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(serverErr))
	} else {
		logger.Info("Application exited successfully")
	}

	// infrastructure goes last: it flushes the logger
	return errors.Join(serverErr, a.infra.Shutdown(ctx))
}
