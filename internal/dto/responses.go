package dto

import (
	"time"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
)

// Response is the envelope wrapping every response body
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// ErrorBody is the error part of the envelope
type ErrorBody struct {
	Code              string      `json:"code"`
	Message           string      `json:"message"`
	Detail            interface{} `json:"detail,omitempty"`
	RemainingAttempts *int        `json:"remainingAttempts,omitempty"`
}

// Success wraps data in a success envelope
func Success(data interface{}) Response {
	return Response{Success: true, Data: data, Timestamp: now()}
}

// Failure builds an error envelope
func Failure(body ErrorBody) Response {
	return Response{Success: false, Error: &body, Timestamp: now()}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UserSummary is the user part of login and create responses
type UserSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	FirstLogin bool   `json:"firstLogin"`
}

// NewUserSummary builds a summary from a domain user
func NewUserSummary(user *domain.User) UserSummary {
	return UserSummary{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Role:       user.Role.String(),
		FirstLogin: user.FirstLogin,
	}
}

// LoginResponse represents a successful login
type LoginResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	ExpiresIn    int         `json:"expiresIn"`
	User         UserSummary `json:"user"`
}

// TokenResponse represents a refreshed access token
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// UserResponse is the profile of the current user
type UserResponse struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	FirstLogin        bool       `json:"firstLogin"`
	AccountLocked     bool       `json:"accountLocked"`
	PasswordUpdatedAt *time.Time `json:"passwordUpdatedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	ActiveSessions    int64      `json:"activeSessions"`
}

// NewUserResponse builds the profile body
func NewUserResponse(user *domain.User, activeSessions int64) UserResponse {
	return UserResponse{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		Role:              user.Role.String(),
		FirstLogin:        user.FirstLogin,
		AccountLocked:     user.AccountLocked,
		PasswordUpdatedAt: user.PasswordUpdatedAt,
		CreatedAt:         user.CreatedAt,
		ActiveSessions:    activeSessions,
	}
}

// LogoutAllResponse reports how many sessions were closed
type LogoutAllResponse struct {
	RevokedSessions int64 `json:"revokedSessions"`
}

// SessionsResponse reports the active sessions of a user
type SessionsResponse struct {
	UserID         int64 `json:"userId"`
	ActiveSessions int64 `json:"activeSessions"`
}

// FieldError describes one invalid request field
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}
