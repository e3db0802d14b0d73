package domain

import "time"

// TokenType is the bearer scheme reported to clients
const TokenType = "Bearer"

// AccessClaims represents the verified claims of an access token
type AccessClaims struct {
	UserID    int64
	Email     string
	Role      Role
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshClaims represents the verified claims of a refresh token
type RefreshClaims struct {
	UserID    int64
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshToken represents a persisted refresh token
type RefreshToken struct {
	ID         int64     `json:"id" db:"id"`
	Token      string    `json:"-" db:"token"`
	UserID     int64     `json:"user_id" db:"user_id"`
	DeviceInfo *string   `json:"device_info" db:"device_info"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	Revoked    bool      `json:"revoked" db:"revoked"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Valid reports whether the token is usable at the given instant
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
