package service

import "github.com/prperemyshlev/session-auth-service/internal/domain"

// LoginInput carries the credentials of a login attempt
type LoginInput struct {
	Email      string
	Password   string
	DeviceInfo string
}

// RegisterInput carries a self-registration request
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// CreateUserInput carries an administrative create-user request
type CreateUserInput struct {
	Name              string
	Email             string
	TemporaryPassword string
	Role              domain.Role
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
	User         *domain.User
}

// AccessTokenResult is returned by a successful refresh
type AccessTokenResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

// UserProfile is the current user together with session information
type UserProfile struct {
	User           *domain.User
	ActiveSessions int64
}

// newLoginResult builds the login response from freshly issued tokens
func (s *authService) newLoginResult(user *domain.User, accessToken, refreshToken string) *LoginResult {
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    domain.TokenType,
		ExpiresIn:    s.codec.GetAccessTokenExpiry(),
		User:         user,
	}
}
