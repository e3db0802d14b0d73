package service

import (
	"context"
	"errors"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/internal/events"
	"github.com/prperemyshlev/session-auth-service/internal/repository"
	"github.com/prperemyshlev/session-auth-service/pkg/observability"
	"go.uber.org/zap"
)

const (
	maxDeviceInfoLength = 255
	publishTimeout      = 2 * time.Second
)

// Dependencies are the collaborators of the auth service
type Dependencies struct {
	Users      repository.UserRepository
	Tokens     repository.TokenRepository
	Tx         repository.Transactor
	Codec      TokenCodec
	Hasher     PasswordHasher
	Revocation RevocationCache
	Attempts   *LoginAttemptTracker
	Events     events.Publisher
	Metrics    *observability.AuthMetrics
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// authService implements AuthService interface
type authService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	tx         repository.Transactor
	codec      TokenCodec
	hasher     PasswordHasher
	revocation RevocationCache
	attempts   *LoginAttemptTracker
	events     events.Publisher
	metrics    *observability.AuthMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(deps Dependencies) AuthService {
	s := &authService{
		userRepo:   deps.Users,
		tokenRepo:  deps.Tokens,
		tx:         deps.Tx,
		codec:      deps.Codec,
		hasher:     deps.Hasher,
		revocation: deps.Revocation,
		attempts:   deps.Attempts,
		events:     deps.Events,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.events == nil {
		s.events = events.NoopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = observability.NewNoopAuthMetrics()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Login verifies credentials and opens a new session
func (s *authService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.Login(ctx, "unknown_user")
			return nil, newError(ErrInvalidCredentials, nil)
		}
		return nil, unavailable("load user", err)
	}

	if user.AccountLocked {
		s.metrics.Login(ctx, "locked")
		return nil, newError(ErrAccountLocked, nil)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, s.failLogin(ctx, user)
	}

	accessToken, _, err := s.codec.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, newError(&AuthError{Kind: KindInternal, Message: "failed to issue token"}, err)
	}
	refreshToken, refreshExpiresAt, err := s.codec.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, newError(&AuthError{Kind: KindInternal, Message: "failed to issue token"}, err)
	}

	record := &domain.RefreshToken{
		Token:      refreshToken,
		UserID:     user.ID,
		DeviceInfo: deviceInfo(input.DeviceInfo),
		ExpiresAt:  refreshExpiresAt,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.attempts.Reset(ctx, user.ID); err != nil {
			return err
		}
		return s.tokenRepo.Save(ctx, record)
	})
	if err != nil {
		if errors.Is(err, repository.ErrAccountLocked) {
			s.metrics.Login(ctx, "locked")
			return nil, newError(ErrAccountLocked, nil)
		}
		return nil, unavailable("open session", err)
	}

	user.LoginFailCount = 0
	s.metrics.Login(ctx, "success")
	s.logger.Info("User logged in",
		zap.Int64("user_id", user.ID),
		zap.String("email", observability.MaskEmail(user.Email)),
	)

	return s.newLoginResult(user, accessToken, refreshToken), nil
}

// failLogin records the failure before the caller sees InvalidCredentials
func (s *authService) failLogin(ctx context.Context, user *domain.User) error {
	failed, err := s.attempts.HandleFailedLogin(ctx, user.ID)
	if err != nil {
		return unavailable("record login failure", err)
	}

	s.metrics.Login(ctx, "invalid_credentials")
	if failed.Locked {
		s.metrics.Lockout(ctx)
		s.logger.Warn("Account locked after repeated login failures",
			zap.Int64("user_id", user.ID),
			zap.Int("fail_count", failed.FailCount),
		)
		s.publish(ctx, events.Event{
			Type:       events.AccountLocked,
			UserID:     user.ID,
			Attributes: map[string]string{"fail_count": strconv.Itoa(failed.FailCount)},
		})
	}

	authErr := newError(ErrInvalidCredentials, nil)
	authErr.RemainingAttempts = &failed.RemainingAttempts
	return authErr
}

// Refresh mints a new access token from a stored refresh token. The refresh
// token itself is not rotated.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AccessTokenResult, error) {
	record, err := s.tokenRepo.FindValid(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrInvalidRefreshToken, nil)
		}
		return nil, unavailable("load refresh token", err)
	}

	if !record.Valid(s.now()) {
		return nil, newError(ErrRefreshTokenExpired, nil)
	}

	user, err := s.userRepo.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUserNotFound, err)
		}
		return nil, unavailable("load user", err)
	}

	if user.AccountLocked {
		return nil, newError(ErrAccountLocked, nil)
	}

	accessToken, _, err := s.codec.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, newError(&AuthError{Kind: KindInternal, Message: "failed to issue token"}, err)
	}

	return &AccessTokenResult{
		AccessToken: accessToken,
		TokenType:   domain.TokenType,
		ExpiresIn:   s.codec.GetAccessTokenExpiry(),
	}, nil
}

// Logout revokes the presented access token and, if given, one refresh token
// owned by the same user. A revocation cache outage does not fail the logout.
func (s *authService) Logout(ctx context.Context, identity *domain.Identity, refreshToken string) error {
	if identity == nil {
		return newError(ErrUnauthenticated, nil)
	}

	s.revokeAccessToken(ctx, identity)

	if refreshToken == "" {
		return nil
	}

	revoked, err := s.tokenRepo.Revoke(ctx, identity.UserID, refreshToken)
	if err != nil {
		return unavailable("revoke refresh token", err)
	}
	s.metrics.TokensRevoked(ctx, "refresh", revoked)

	s.logger.Info("User logged out",
		zap.Int64("user_id", identity.UserID),
		zap.Int64("refresh_tokens_revoked", revoked),
	)
	return nil
}

// LogoutAll revokes every refresh token of the user plus the presented access token.
// Access tokens issued to other devices stay valid until they expire.
func (s *authService) LogoutAll(ctx context.Context, identity *domain.Identity) (int64, error) {
	if identity == nil {
		return 0, newError(ErrUnauthenticated, nil)
	}

	revoked, err := s.tokenRepo.RevokeAll(ctx, identity.UserID)
	if err != nil {
		return 0, unavailable("revoke refresh tokens", err)
	}
	s.metrics.TokensRevoked(ctx, "refresh", revoked)

	s.revokeAccessToken(ctx, identity)

	s.logger.Info("User logged out from all devices",
		zap.Int64("user_id", identity.UserID),
		zap.Int64("refresh_tokens_revoked", revoked),
	)
	s.publish(ctx, events.Event{
		Type:       events.SessionsRevoked,
		UserID:     identity.UserID,
		Attributes: map[string]string{"revoked": strconv.FormatInt(revoked, 10)},
	})

	return revoked, nil
}

func (s *authService) revokeAccessToken(ctx context.Context, identity *domain.Identity) {
	if identity.Token == "" {
		return
	}

	ttl, err := s.codec.RemainingLifetime(identity.Token)
	if err != nil {
		s.logger.Warn("Cannot compute access token lifetime, skipping revocation",
			zap.Int64("user_id", identity.UserID), zap.Error(err))
		return
	}
	if ttl <= 0 {
		return
	}

	if err := s.revocation.Revoke(ctx, identity.Token, ttl); err != nil {
		s.logger.Error("Failed to revoke access token, it stays valid until expiry",
			zap.Int64("user_id", identity.UserID),
			zap.Duration("remaining", ttl),
			zap.Error(err),
		)
		return
	}
	s.metrics.TokensRevoked(ctx, "access", 1)
}

// ChangePassword replaces the password after checking the current one
func (s *authService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return newError(ErrCurrentPasswordIncorrect, nil)
	}

	return s.storePassword(ctx, user, newPassword)
}

// SetPassword sets the permanent password of a user still on a temporary one
func (s *authService) SetPassword(ctx context.Context, userID int64, newPassword string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if !user.FirstLogin {
		return newError(ErrNotFirstLogin, nil)
	}

	return s.storePassword(ctx, user, newPassword)
}

func (s *authService) storePassword(ctx context.Context, user *domain.User, newPassword string) error {
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(ErrUserNotFound, err)
		}
		return unavailable("update password", err)
	}

	s.logger.Info("Password updated", zap.Int64("user_id", user.ID), zap.Bool("first_login", user.FirstLogin))
	s.publish(ctx, events.Event{Type: events.PasswordChanged, UserID: user.ID})
	return nil
}

// CurrentUser returns the profile of the authenticated user
func (s *authService) CurrentUser(ctx context.Context, userID int64) (*UserProfile, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.tokenRepo.CountValid(ctx, userID, s.now())
	if err != nil {
		return nil, unavailable("count sessions", err)
	}

	return &UserProfile{User: user, ActiveSessions: sessions}, nil
}

// Authenticate checks the revocation cache first so known-dead tokens skip
// signature verification
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if s.revocation.IsRevoked(ctx, accessToken) {
		return nil, newError(ErrTokenRevoked, nil)
	}

	claims, err := s.codec.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, newError(ErrInvalidToken, err)
	}

	return &domain.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
		Token:  accessToken,
	}, nil
}

func (s *authService) loadUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUserNotFound, err)
		}
		return nil, unavailable("load user", err)
	}
	return user, nil
}

func (s *authService) publish(ctx context.Context, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish security event",
			zap.String("type", string(event.Type)),
			zap.Int64("user_id", event.UserID),
			zap.Error(err),
		)
	}
}

func deviceInfo(raw string) *string {
	if raw == "" {
		return nil
	}
	if utf8.RuneCountInString(raw) > maxDeviceInfoLength {
		raw = string([]rune(raw)[:maxDeviceInfoLength])
	}
	return &raw
}
