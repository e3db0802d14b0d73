package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/internal/service"
	"go.uber.org/zap"
)

const identityKey = "identity"

// PublicPaths are served without looking at the Authorization header
var PublicPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/api/v1/auth/register",
	"/health",
	"/metrics",
	"/api-docs",
	"/swagger-ui",
}

func isPublic(path string) bool {
	for _, p := range PublicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Authenticator resolves the bearer token into an identity. Requests without a
// usable token continue anonymously; a revoked token is rejected outright.
func Authenticator(authService service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		identity, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrTokenRevoked) {
				abortWithKind(c, service.KindTokenRevoked, service.ErrTokenRevoked.Message, nil)
				return
			}
			logger.Debug("Ignoring unusable bearer token",
				zap.String("path", c.Request.URL.Path),
				zap.String("reason", reason(err)),
			)
			c.Next()
			return
		}

		c.Set(identityKey, identity)
		c.Request = c.Request.WithContext(domain.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// reason keeps token parse details to the sentinel text
func reason(err error) string {
	var authErr *service.AuthError
	if errors.As(err, &authErr) && authErr.Err != nil {
		return authErr.Err.Error()
	}
	return err.Error()
}

// RequireAuth rejects anonymous requests
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentIdentity(c); !ok {
			abortWithKind(c, service.KindUnauthenticated, service.ErrUnauthenticated.Message, nil)
			return
		}
		c.Next()
	}
}

// RequireRole rejects identities holding none of roles
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := currentIdentity(c)
		if !ok {
			abortWithKind(c, service.KindUnauthenticated, service.ErrUnauthenticated.Message, nil)
			return
		}
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		abortWithKind(c, service.KindForbidden, service.ErrForbidden.Message, nil)
	}
}

func currentIdentity(c *gin.Context) (*domain.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*domain.Identity)
	return identity, ok && identity != nil
}
