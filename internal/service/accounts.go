package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/prperemyshlev/session-auth-service/internal/domain"
	"github.com/prperemyshlev/session-auth-service/internal/events"
	"github.com/prperemyshlev/session-auth-service/internal/repository"
	"github.com/prperemyshlev/session-auth-service/internal/utils"
	"github.com/prperemyshlev/session-auth-service/pkg/observability"
	"go.uber.org/zap"
)

// Register creates a regular user who picked their own password
func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	user := &domain.User{
		Name:       input.Name,
		Email:      utils.NormalizeEmail(input.Email),
		Role:       domain.RoleUser,
		FirstLogin: false,
	}

	if err := s.createUser(ctx, user, input.Password); err != nil {
		return nil, err
	}

	s.logger.Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", observability.MaskEmail(user.Email)),
	)
	s.publish(ctx, events.Event{
		Type:       events.UserCreated,
		UserID:     user.ID,
		Attributes: map[string]string{"role": user.Role.String(), "source": "register"},
	})
	return user, nil
}

// CreateUser creates a user on behalf of an administrator. The user must
// replace the temporary password on first login.
func (s *authService) CreateUser(ctx context.Context, actor *domain.Identity, input CreateUserInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, &AuthError{Kind: KindInvalidRequest, Message: "unknown role " + strconv.Quote(string(input.Role))}
	}

	user := &domain.User{
		Name:       input.Name,
		Email:      utils.NormalizeEmail(input.Email),
		Role:       input.Role,
		FirstLogin: true,
	}

	if err := s.createUser(ctx, user, input.TemporaryPassword); err != nil {
		return nil, err
	}

	s.logger.Info("User created by administrator",
		zap.Int64("user_id", user.ID),
		zap.Int64("actor_id", actor.UserID),
		zap.String("role", user.Role.String()),
	)
	s.publish(ctx, events.Event{
		Type:       events.UserCreated,
		UserID:     user.ID,
		ActorID:    actor.UserID,
		Attributes: map[string]string{"role": user.Role.String(), "source": "admin"},
	})
	return user, nil
}

// UnlockUser clears the lockout and the failure counter
func (s *authService) UnlockUser(ctx context.Context, actor *domain.Identity, userID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	if err := s.userRepo.Unlock(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(ErrUserNotFound, err)
		}
		return unavailable("unlock user", err)
	}

	s.logger.Info("Account unlocked", zap.Int64("user_id", userID), zap.Int64("actor_id", actor.UserID))
	s.publish(ctx, events.Event{Type: events.AccountUnlocked, UserID: userID, ActorID: actor.UserID})
	return nil
}

// ActiveSessions counts the valid refresh tokens of a user
func (s *authService) ActiveSessions(ctx context.Context, userID int64) (int64, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return 0, err
	}

	count, err := s.tokenRepo.CountValid(ctx, userID, s.now())
	if err != nil {
		return 0, unavailable("count sessions", err)
	}
	return count, nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is taken
func (s *authService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = utils.NormalizeEmail(email)

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Debug("Bootstrap administrator already exists", zap.String("email", observability.MaskEmail(email)))
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return unavailable("load user", err)
	}

	user := &domain.User{
		Name:       name,
		Email:      email,
		Role:       domain.RoleAdmin,
		FirstLogin: true,
	}
	if err := s.createUser(ctx, user, password); err != nil {
		// another instance won the race
		if errors.Is(err, ErrDuplicateEmail) {
			return nil
		}
		return err
	}

	s.logger.Info("Bootstrap administrator created",
		zap.Int64("user_id", user.ID),
		zap.String("email", observability.MaskEmail(user.Email)),
	)
	return nil
}

func (s *authService) createUser(ctx context.Context, user *domain.User, password string) error {
	if !utils.ValidateEmail(user.Email) {
		return &AuthError{Kind: KindInvalidRequest, Message: "invalid email format"}
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return newError(ErrDuplicateEmail, nil)
		}
		return unavailable("create user", err)
	}
	return nil
}

// hashPassword enforces the password policy before hashing
func (s *authService) hashPassword(password string) (string, error) {
	if !utils.ValidatePassword(password) {
		return "", newError(ErrInvalidPassword, nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", newError(&AuthError{Kind: KindInternal, Message: "failed to hash password"}, err)
	}
	return hash, nil
}

func requireAdmin(actor *domain.Identity) error {
	if actor == nil {
		return newError(ErrUnauthenticated, nil)
	}
	if !actor.Role.CanManageUsers() {
		return newError(ErrForbidden, nil)
	}
	return nil
}
