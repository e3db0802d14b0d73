package domain

import "time"

// User represents an account that can authenticate against the service
type User struct {
	ID                int64      `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	Email             string     `json:"email" db:"email"`
	PasswordHash      string     `json:"-" db:"password_hash"`
	Role              Role       `json:"role" db:"role"`
	PasswordUpdatedAt *time.Time `json:"password_updated_at" db:"password_updated_at"`
	FirstLogin        bool       `json:"first_login" db:"first_login"`
	AccountLocked     bool       `json:"account_locked" db:"account_locked"`
	LoginFailCount    int        `json:"login_fail_count" db:"login_fail_count"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// LoginFailure is the persisted state of the failure counter right after an increment
type LoginFailure struct {
	FailCount int
	Locked    bool
}

// RemainingAttempts reports how many failures are left before the account locks.
func (f LoginFailure) RemainingAttempts(maxAttempts int) int {
	if f.Locked {
		return 0
	}
	remaining := maxAttempts - f.FailCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
