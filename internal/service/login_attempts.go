package service

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/session-auth-service/internal/repository"
)

// LoginAttemptTracker owns the per-user failure counter and lockout transition:
// Normal(n) -> Normal(n+1) on failure, Normal(n) -> Locked once n+1 reaches
// maxAttempts, Normal(n) -> Normal(0) on success. Only an admin unlock leaves Locked.
type LoginAttemptTracker struct {
	users       repository.UserRepository
	maxAttempts int
}

// FailedLogin is the outcome of recording one failed attempt
type FailedLogin struct {
	FailCount         int
	RemainingAttempts int
	Locked            bool
}

// NewLoginAttemptTracker creates a tracker locking accounts after maxAttempts failures
func NewLoginAttemptTracker(users repository.UserRepository, maxAttempts int) *LoginAttemptTracker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &LoginAttemptTracker{users: users, maxAttempts: maxAttempts}
}

// MaxAttempts returns the configured lockout threshold
func (t *LoginAttemptTracker) MaxAttempts() int {
	return t.maxAttempts
}

// HandleFailedLogin records a failure. The increment is committed by the
// repository as its own unit of work before this method returns.
func (t *LoginAttemptTracker) HandleFailedLogin(ctx context.Context, userID int64) (FailedLogin, error) {
	failure, err := t.users.RecordLoginFailure(ctx, userID, t.maxAttempts)
	if err != nil {
		return FailedLogin{}, fmt.Errorf("failed to record login failure: %w", err)
	}

	return FailedLogin{
		FailCount:         failure.FailCount,
		RemainingAttempts: failure.RemainingAttempts(t.maxAttempts),
		Locked:            failure.Locked,
	}, nil
}

// Reset clears the failure counter after a successful login. A locked account
// is left untouched and reported as repository.ErrAccountLocked.
func (t *LoginAttemptTracker) Reset(ctx context.Context, userID int64) error {
	if err := t.users.ResetLoginFailures(ctx, userID); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}
