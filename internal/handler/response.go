package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/session-auth-service/internal/dto"
	"github.com/prperemyshlev/session-auth-service/internal/service"
	"go.uber.org/zap"
)

var kindStatus = map[service.ErrorKind]int{
	service.KindInvalidCredentials:       http.StatusUnauthorized,
	service.KindAccountLocked:            http.StatusUnauthorized,
	service.KindUnauthenticated:          http.StatusUnauthorized,
	service.KindInvalidToken:             http.StatusUnauthorized,
	service.KindForbidden:                http.StatusForbidden,
	service.KindCurrentPasswordIncorrect: http.StatusBadRequest,
	service.KindInvalidPassword:          http.StatusBadRequest,
	service.KindDuplicateEmail:           http.StatusBadRequest,
	service.KindUserNotFound:             http.StatusNotFound,
	service.KindInvalidRefreshToken:      http.StatusUnauthorized,
	service.KindTokenRevoked:             http.StatusUnauthorized,
	service.KindNotFirstLogin:            http.StatusBadRequest,
	service.KindRefreshTokenExpired:      http.StatusUnauthorized,
	service.KindInvalidRequest:           http.StatusBadRequest,
	service.KindRateLimited:              http.StatusTooManyRequests,
	service.KindUnavailable:              http.StatusServiceUnavailable,
	service.KindInternal:                 http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind service.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.Success(data))
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, dto.Success(data))
}

// abortWithKind writes an error envelope for a kind raised by the HTTP layer itself
func abortWithKind(c *gin.Context, kind service.ErrorKind, message string, detail interface{}) {
	c.AbortWithStatusJSON(StatusFor(kind), dto.Failure(dto.ErrorBody{
		Code:    kind.Code(),
		Message: message,
		Detail:  detail,
	}))
}

// respondError renders err. Only AuthError messages reach the client; anything
// else is logged and rendered as an internal error.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	respondErrorWithStatus(c, logger, err, 0)
}

func respondErrorWithStatus(c *gin.Context, logger *zap.Logger, err error, status int) {
	var authErr *service.AuthError
	if !errors.As(err, &authErr) {
		logger.Error("Unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithKind(c, service.KindInternal, "internal server error", nil)
		return
	}

	if status == 0 {
		status = StatusFor(authErr.Kind)
	}

	switch authErr.Kind {
	case service.KindUnavailable, service.KindInternal:
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", authErr.Kind.Code()),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, dto.Failure(dto.ErrorBody{
		Code:              authErr.Kind.Code(),
		Message:           authErr.Message,
		RemainingAttempts: authErr.RemainingAttempts,
	}))
}

// respondBindError renders a request body or path that failed validation
func respondBindError(c *gin.Context, err error) {
	if passwordRuleViolated(err) {
		abortWithKind(c, service.KindInvalidPassword, service.ErrInvalidPassword.Message, fieldErrors(err))
		return
	}

	if fields := fieldErrors(err); len(fields) > 0 {
		abortWithKind(c, service.KindInvalidRequest, "invalid request", fields)
		return
	}
	abortWithKind(c, service.KindInvalidRequest, "invalid request", "malformed request")
}
