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

// Wrong password, unknown email, and inactive accounts all surface this exact
// message so the response does not leak which accounts exist.
const invalidCredentialsMessage = "Invalid email or password"

// AuthService coordinates signup, login, and session-adjacent flows.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	tokenMgr   *auth.TokenManager
	denylist   auth.TokenRevoker
	dispatcher events.Dispatcher
	bcryptCost int
	resetTTL   time.Duration
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Denylist          auth.TokenRevoker
	Dispatcher        events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg *config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		denylist:   deps.Denylist,
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
	}
}

// Signup creates a new account. Public signups always get the user role and
// an active status.
func (s *AuthService) Signup(ctx context.Context, email, password, fullName string) (*domain.User, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(ctx, events.EventUserCreated, user.ID, events.Actor{}, events.UserCreatedPayload{
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
		Signup:   true,
	})

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Login authenticates an account and stamps last_login on success.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized(invalidCredentialsMessage)
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized(invalidCredentialsMessage)
	}
	if !user.IsActive() {
		return nil, "", time.Time{}, apperrors.NewUnauthorized(invalidCredentialsMessage)
	}

	now := time.Now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, "", time.Time{}, err
	}
	user.LastLogin = &now

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Refresh issues a fresh token for an already-authenticated user.
func (s *AuthService) Refresh(_ context.Context, user *domain.User) (string, time.Time, error) {
	return s.tokenMgr.GenerateToken(user)
}

// Logout revokes the presented token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || s.denylist == nil {
		return nil
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.denylist.Revoke(ctx, claims.JTI, expiresAt)
}

// RequestPasswordReset persists a reset token for the given email. A nil
// token with nil error means the email is unknown; callers respond the same
// either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*repository.PasswordResetToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ConfirmPasswordReset validates the reset token and updates the password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("invalid or expired reset token", nil)
		}
		return err
	}
	if token.UsedAt != nil || time.Now().After(token.ExpiresAt) {
		return apperrors.NewValidationError("invalid or expired reset token", nil)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.resets.MarkUsed(ctx, token.ID); err != nil {
		return err
	}

	s.publish(ctx, events.EventUserPasswordChanged, user.ID, events.Actor{}, events.UserPasswordChangedPayload{
		Email: user.Email,
		Reset: true,
	})
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, actor events.Actor, payload interface{}) {
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
