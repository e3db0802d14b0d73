package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"go.uber.org/zap"
)

// MinSigningKeyLength is the minimum HMAC key size in bytes (256 bits)
const MinSigningKeyLength = 32

// Token codec errors
var (
	ErrWeakSigningKey        = errors.New("signing key must be at least 32 bytes")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenUnsupported      = errors.New("token algorithm is not supported")
)

var weakKeyMarkers = []string{"changeme", "default", "secret", "password", "example", "test"}

// refreshClaims carries only the subject, plus a jti so that two refresh tokens
// issued within the same second are still distinct
type refreshClaims struct {
	jwt.RegisteredClaims
}

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Option configures a JWTManager
type Option func(*JWTManager)

// WithClock overrides the time source used to issue and verify tokens
func WithClock(now func() time.Time) Option {
	return func(j *JWTManager) {
		j.now = now
	}
}

// JWTManager signs and verifies HS256 access and refresh tokens
type JWTManager struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
	parser             *jwt.Parser
}

// NewJWTManager creates a new JWT manager. It refuses keys shorter than
// MinSigningKeyLength and warns about keys that look like placeholders.
func NewJWTManager(secret string, accessTokenExpiry, refreshTokenExpiry time.Duration, logger *zap.Logger, opts ...Option) (*JWTManager, error) {
	if len(secret) < MinSigningKeyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrWeakSigningKey, len(secret))
	}

	if IsWeakSigningKey(secret) && logger != nil {
		logger.Warn("JWT signing key looks like a default or placeholder value, rotate it before production use")
	}

	j := &JWTManager{
		secret:             []byte(secret),
		accessTokenExpiry:  accessTokenExpiry,
		refreshTokenExpiry: refreshTokenExpiry,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	j.parser = jwt.NewParser(
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	return j, nil
}

// IsWeakSigningKey reports whether the key contains a well-known placeholder
func IsWeakSigningKey(secret string) bool {
	lower := strings.ToLower(secret)
	for _, marker := range weakKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// GenerateAccessToken issues a signed access token for the user
func (j *JWTManager) GenerateAccessToken(userID int64, email string, role domain.Role) (string, time.Time, error) {
	now := j.now().UTC().Truncate(jwt.TimePrecision)
	expiresAt := now.Add(j.accessTokenExpiry)

	claims := accessClaims{
		Email: email,
		Role:  role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return token, claims.ExpiresAt.Time, nil
}

// GenerateRefreshToken issues a signed refresh token carrying only the subject
func (j *JWTManager) GenerateRefreshToken(userID int64) (string, time.Time, error) {
	now := j.now().UTC().Truncate(jwt.TimePrecision)
	expiresAt := now.Add(j.refreshTokenExpiry)

	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return token, claims.ExpiresAt.Time, nil
}

// ValidateAccessToken verifies the signature and expiry of an access token
func (j *JWTManager) ValidateAccessToken(tokenString string) (*domain.AccessClaims, error) {
	claims := &accessClaims{}
	if err := j.parse(tokenString, claims); err != nil {
		return nil, err
	}

	userID, err := parseSubject(claims.Subject)
	if err != nil {
		return nil, err
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email or role claim", ErrTokenMalformed)
	}

	return &domain.AccessClaims{
		UserID:    userID,
		Email:     claims.Email,
		Role:      role,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// ValidateRefreshToken verifies the signature and expiry of a refresh token
func (j *JWTManager) ValidateRefreshToken(tokenString string) (*domain.RefreshClaims, error) {
	claims := &refreshClaims{}
	if err := j.parse(tokenString, claims); err != nil {
		return nil, err
	}

	userID, err := parseSubject(claims.Subject)
	if err != nil {
		return nil, err
	}

	return &domain.RefreshClaims{
		UserID:    userID,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// RemainingLifetime returns how long a token stays valid, never negative.
// An authentic but already expired token yields zero without an error.
func (j *JWTManager) RemainingLifetime(tokenString string) (time.Duration, error) {
	claims := &jwt.RegisteredClaims{}
	err := j.parse(tokenString, claims)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return 0, err
	}
	if claims.ExpiresAt == nil {
		return 0, nil
	}

	remaining := claims.ExpiresAt.Sub(j.now())
	if err != nil || remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// GetAccessTokenExpiry returns the access token expiry duration in seconds
func (j *JWTManager) GetAccessTokenExpiry() int {
	return int(j.accessTokenExpiry.Seconds())
}

// RefreshTokenExpiry returns the configured refresh token lifetime
func (j *JWTManager) RefreshTokenExpiry() time.Duration {
	return j.refreshTokenExpiry
}

func (j *JWTManager) parse(tokenString string, claims jwt.Claims) error {
	_, err := j.parser.ParseWithClaims(tokenString, claims, j.keyFunc)
	if err == nil {
		return nil
	}
	return classify(err)
}

func (j *JWTManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("%w: %v", ErrTokenUnsupported, token.Header["alg"])
	}
	return j.secret, nil
}

// classify maps jwt library errors onto the codec's error kinds
func classify(err error) error {
	switch {
	case errors.Is(err, ErrTokenUnsupported):
		return fmt.Errorf("%w: %v", ErrTokenUnsupported, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenUnsupported, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

func parseSubject(sub string) (int64, error) {
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: invalid subject claim", ErrTokenMalformed)
	}
	return userID, nil
}
