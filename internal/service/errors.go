package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the auth service
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidCredentials
	KindAccountLocked
	KindUnauthenticated
	KindInvalidToken
	KindForbidden
	KindCurrentPasswordIncorrect
	KindInvalidPassword
	KindDuplicateEmail
	KindUserNotFound
	KindInvalidRefreshToken
	KindTokenRevoked
	KindNotFirstLogin
	KindRefreshTokenExpired
	KindInvalidRequest
	KindRateLimited
	KindUnavailable
)

var kindCodes = map[ErrorKind]string{
	KindInternal:                 "SYS-500",
	KindInvalidCredentials:       "AUTH-001",
	KindAccountLocked:            "AUTH-002",
	KindUnauthenticated:          "AUTH-003",
	KindInvalidToken:             "AUTH-004",
	KindForbidden:                "AUTH-005",
	KindCurrentPasswordIncorrect: "AUTH-006",
	KindInvalidPassword:          "AUTH-007",
	KindDuplicateEmail:           "AUTH-008",
	KindUserNotFound:             "AUTH-009",
	KindInvalidRefreshToken:      "AUTH-010",
	KindTokenRevoked:             "AUTH-011",
	KindNotFirstLogin:            "AUTH-012",
	KindRefreshTokenExpired:      "AUTH-013",
	KindInvalidRequest:           "REQ-001",
	KindRateLimited:              "REQ-002",
	KindUnavailable:              "SYS-503",
}

// Code returns the stable, client-visible error code
func (k ErrorKind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindInternal]
}

// AuthError is the single error type returned by AuthService
type AuthError struct {
	Kind    ErrorKind
	Message string
	// RemainingAttempts is set on InvalidCredentials when the user exists.
	RemainingAttempts *int
	Err               error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind, so the sentinels below work with errors.Is
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrInvalidCredentials       = &AuthError{Kind: KindInvalidCredentials, Message: "invalid email or password"}
	ErrAccountLocked            = &AuthError{Kind: KindAccountLocked, Message: "account is locked, contact an administrator"}
	ErrUnauthenticated          = &AuthError{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrInvalidToken             = &AuthError{Kind: KindInvalidToken, Message: "invalid or expired token"}
	ErrForbidden                = &AuthError{Kind: KindForbidden, Message: "access denied"}
	ErrCurrentPasswordIncorrect = &AuthError{Kind: KindCurrentPasswordIncorrect, Message: "current password is incorrect"}
	ErrInvalidPassword          = &AuthError{Kind: KindInvalidPassword, Message: "password does not meet the policy"}
	ErrDuplicateEmail           = &AuthError{Kind: KindDuplicateEmail, Message: "email is already registered"}
	ErrUserNotFound             = &AuthError{Kind: KindUserNotFound, Message: "user not found"}
	ErrInvalidRefreshToken      = &AuthError{Kind: KindInvalidRefreshToken, Message: "invalid refresh token"}
	ErrTokenRevoked             = &AuthError{Kind: KindTokenRevoked, Message: "token has been revoked"}
	ErrNotFirstLogin            = &AuthError{Kind: KindNotFirstLogin, Message: "password has already been set"}
	ErrRefreshTokenExpired      = &AuthError{Kind: KindRefreshTokenExpired, Message: "refresh token has expired"}
	ErrUnavailable              = &AuthError{Kind: KindUnavailable, Message: "service temporarily unavailable"}
)

func newError(sentinel *AuthError, cause error) *AuthError {
	return &AuthError{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

func unavailable(op string, cause error) *AuthError {
	return newError(ErrUnavailable, fmt.Errorf("%s: %w", op, cause))
}

// KindOf extracts the kind of err, or KindInternal for foreign errors
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternal
}
