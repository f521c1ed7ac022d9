package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// UpdateUserInput carries optional profile mutations. Nil fields are left
// untouched.
type UpdateUserInput struct {
	Email    *string
	FullName *string
	Role     *domain.UserRole
	Status   *domain.UserStatus
}

// UserService implements account CRUD and the admin rules around it.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	bcryptCost int
}

// NewUserService builds the service.
func NewUserService(cfg *config.Config, users repository.UserRepository, dispatcher events.Dispatcher) *UserService {
	return &UserService{
		users:      users,
		dispatcher: dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// List returns a page of users plus the unpaginated total.
func (s *UserService) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	return s.users.List(ctx, filter)
}

// Get loads a single user.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// Create makes an account with explicit role and status (admin operation).
func (s *UserService) Create(ctx context.Context, actor *domain.User, email, password, fullName string, role domain.UserRole, status domain.UserStatus) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !domain.ValidRole(role) {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if !domain.ValidStatus(status) {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		Status:       status,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventUserCreated, user.ID, actorOf(actor), events.UserCreatedPayload{
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	})
	return user, nil
}

// Update applies profile changes. Role and status changes are admin-only,
// and an admin may not change their own role.
func (s *UserService) Update(ctx context.Context, actor *domain.User, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Role != nil || input.Status != nil {
		if !actor.IsAdmin() {
			return nil, apperrors.NewForbidden("only admins may change role or status")
		}
	}
	if input.Role != nil {
		if !domain.ValidRole(*input.Role) {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *input.Role})
		}
		if actor.ID == user.ID && *input.Role != user.Role {
			return nil, apperrors.NewForbidden("cannot change own role")
		}
		user.Role = *input.Role
	}
	if input.Status != nil {
		if !domain.ValidStatus(*input.Status) {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		if actor.ID == user.ID && *input.Status == domain.UserStatusInactive {
			return nil, apperrors.NewForbidden("cannot deactivate own account")
		}
		user.Status = *input.Status
	}
	if input.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.FullName != nil {
		user.FullName = *input.FullName
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword updates a password. Users changing their own password must
// present the current one; admins may set another user's without it.
func (s *UserService) ChangePassword(ctx context.Context, actor *domain.User, id, currentPassword, newPassword string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	self := actor.ID == user.ID
	if !self && !actor.IsAdmin() {
		return apperrors.NewForbidden("insufficient permissions")
	}
	if self {
		if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
			return apperrors.NewUnauthorized("current password is incorrect")
		}
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.publish(ctx, events.EventUserPasswordChanged, user.ID, actorOf(actor), events.UserPasswordChangedPayload{
		Email:   user.Email,
		ByAdmin: !self,
	})
	return nil
}

// Activate re-enables an account.
func (s *UserService) Activate(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	return s.setStatus(ctx, actor, id, domain.UserStatusActive)
}

// Deactivate disables an account. Admins cannot deactivate themselves.
func (s *UserService) Deactivate(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if actor.ID == id {
		return nil, apperrors.NewForbidden("cannot deactivate own account")
	}
	return s.setStatus(ctx, actor, id, domain.UserStatusInactive)
}

func (s *UserService) setStatus(ctx context.Context, actor *domain.User, id string, status domain.UserStatus) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Status == status {
		return user, nil
	}

	oldStatus := user.Status
	if err := s.users.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}
	user.Status = status
	user.UpdatedAt = time.Now()

	s.publish(ctx, events.EventUserStatusChanged, user.ID, actorOf(actor), events.UserStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: status,
	})
	return user, nil
}

// Delete removes an account. Regular users may delete their own account;
// admins may delete any account except their own.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id string) error {
	self := actor.ID == id
	if actor.IsAdmin() && self {
		return apperrors.NewForbidden("cannot delete own account")
	}
	if !actor.IsAdmin() && !self {
		return apperrors.NewForbidden("insufficient permissions")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", nil)
		}
		return err
	}

	s.publish(ctx, events.EventUserDeleted, id, actorOf(actor), events.UserDeletedPayload{
		Email:      user.Email,
		SelfDelete: self,
	})
	return nil
}

// Stats aggregates account counters for the admin dashboard.
func (s *UserService) Stats(ctx context.Context) (*repository.UserStats, error) {
	return s.users.Stats(ctx)
}

func (s *UserService) publish(ctx context.Context, eventType events.EventType, userID string, actor events.Actor, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Actor:     actor,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func actorOf(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	return events.Actor{ActorID: user.ID, Role: user.Role}
}
