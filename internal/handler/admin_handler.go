package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/internal/dto"
	"github.com/prperemyshlev/session-auth-service/internal/service"
	"go.uber.org/zap"
)

// AdminHandler serves the user administration endpoints
type AdminHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService service.AuthService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{authService: authService, logger: logger}
}

// CreateUser creates a user with a temporary password
// @Summary Create user
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateUserRequest true "Create user request"
// @Success 201 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Failure 403 {object} dto.Response
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	actor, _ := currentIdentity(c)

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.authService.CreateUser(c.Request.Context(), actor, service.CreateUserInput{
		Name:              req.Name,
		Email:             req.Email,
		TemporaryPassword: req.TemporaryPassword,
		Role:              domain.Role(req.Role),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, dto.NewUserSummary(user))
}

// UnlockUser clears a lockout
// @Summary Unlock user
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} dto.Response
// @Failure 404 {object} dto.Response
// @Router /admin/users/{id}/unlock [post]
func (h *AdminHandler) UnlockUser(c *gin.Context) {
	actor, _ := currentIdentity(c)

	var params dto.UserIDParam
	if err := c.ShouldBindUri(&params); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.UnlockUser(c.Request.Context(), actor, params.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, nil)
}

// Sessions reports the active sessions of a user
// @Summary Active sessions of a user
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} dto.Response
// @Failure 404 {object} dto.Response
// @Router /admin/users/{id}/sessions [get]
func (h *AdminHandler) Sessions(c *gin.Context) {
	var params dto.UserIDParam
	if err := c.ShouldBindUri(&params); err != nil {
		respondBindError(c, err)
		return
	}

	count, err := h.authService.ActiveSessions(c.Request.Context(), params.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, dto.SessionsResponse{UserID: params.ID, ActiveSessions: count})
}
