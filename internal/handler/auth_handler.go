package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/session-auth-service/internal/dto"
	"github.com/prperemyshlev/session-auth-service/internal/service"
	"github.com/prperemyshlev/session-auth-service/internal/utils"
	"go.uber.org/zap"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register handles user self-registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, dto.NewUserSummary(user))
}

// Login handles user login
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	deviceInfo := req.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = c.Request.UserAgent()
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:      utils.NormalizeEmail(req.Email),
		Password:   req.Password,
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, dto.LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		User:         dto.NewUserSummary(result.User),
	})
}

// Refresh issues a new access token
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshRequest true "Refresh request"
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.Response
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		// a dangling refresh token is an authentication failure, not a lookup miss
		if errors.Is(err, service.ErrUserNotFound) {
			respondErrorWithStatus(c, h.logger, err, http.StatusUnauthorized)
			return
		}
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, dto.TokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   result.ExpiresIn,
	})
}

// Logout handles user logout
// @Summary Logout user
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, _ := currentIdentity(c)

	// the body is optional
	var req dto.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), identity, req.RefreshToken); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, nil)
}

// LogoutAll revokes every session of the current user
// @Summary Logout from all devices
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.Response
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	identity, _ := currentIdentity(c)

	revoked, err := h.authService.LogoutAll(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, dto.LogoutAllResponse{RevokedSessions: revoked})
}

// ChangePassword handles a password change by the account owner
// @Summary Change password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.ChangePasswordRequest true "Change password request"
// @Success 200 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, _ := currentIdentity(c)

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, nil)
}

// SetPassword replaces the temporary password on first login
// @Summary Set permanent password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.SetPasswordRequest true "Set password request"
// @Success 200 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /auth/set-password [post]
func (h *AuthHandler) SetPassword(c *gin.Context) {
	identity, _ := currentIdentity(c)

	var req dto.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.SetPassword(c.Request.Context(), identity.UserID, req.NewPassword); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, nil)
}

// GetMe returns the current user profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.Response
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	identity, _ := currentIdentity(c)

	profile, err := h.authService.CurrentUser(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, dto.NewUserResponse(profile.User, profile.ActiveSessions))
}
