package dto

// LoginRequest represents a login request
type LoginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	DeviceInfo string `json:"deviceInfo" binding:"omitempty,max=255"`
}

// RegisterRequest represents a self-registration request
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,password"`
}

// RefreshRequest carries the refresh token in the body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// LogoutRequest optionally names the refresh token to revoke with the session
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest represents a password change by the account owner
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,password"`
}

// SetPasswordRequest replaces a temporary password on first login
type SetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,password"`
}

// CreateUserRequest represents an administrative create-user request
type CreateUserRequest struct {
	Name              string `json:"name" binding:"required,max=100"`
	Email             string `json:"email" binding:"required,email,max=255"`
	TemporaryPassword string `json:"temporaryPassword" binding:"required,password"`
	Role              string `json:"role" binding:"required,role"`
}

// UserIDParam binds the :id path segment of admin routes
type UserIDParam struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}
