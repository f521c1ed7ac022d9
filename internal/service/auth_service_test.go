package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

func newAuthService(users *fakeUserRepo, resets *fakeResetRepo, dispatcher events.Dispatcher) *AuthService {
	return NewAuthService(testConfig(), AuthDependencies{
		UserRepo:          users,
		PasswordResetRepo: resets,
		Dispatcher:        dispatcher,
	})
}

func TestSignupCreatesActiveUserRole(t *testing.T) {
	users := newFakeUserRepo()
	dispatcher := &recordingDispatcher{}
	svc := newAuthService(users, newFakeResetRepo(), dispatcher)

	user, token, exp, err := svc.Signup(context.Background(), "Jane@Example.com", "hunter2hunter2", "Jane Doe")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "jane@example.com", user.Email, "email lowercased")
	assert.Equal(t, domain.RoleUser, user.Role, "public signup never grants admin")
	assert.Equal(t, domain.UserStatusActive, user.Status)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)
	assert.NotEmpty(t, token)
	assert.True(t, exp.After(time.Now()))

	published := dispatcher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventUserCreated, published[0].Type)
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	existing := activeUser("u1", "jane@example.com", domain.RoleUser)
	svc := newAuthService(newFakeUserRepo(existing), newFakeResetRepo(), nil)

	_, _, _, err := svc.Signup(context.Background(), "jane@example.com", "hunter2hunter2", "Jane Doe")
	require.Error(t, err)

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestLoginSuccessStampsLastLogin(t *testing.T) {
	existing := activeUser("u1", "jane@example.com", domain.RoleUser)
	users := newFakeUserRepo(existing)
	svc := newAuthService(users, newFakeResetRepo(), nil)

	user, token, _, err := svc.Login(context.Background(), "jane@example.com", "correct-password")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	require.NotNil(t, user.LastLogin)
	assert.WithinDuration(t, time.Now(), *user.LastLogin, 5*time.Second)

	stored, err := users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin, "last_login persisted")
}

func TestLoginFailuresAreUniform(t *testing.T) {
	inactive := activeUser("u2", "gone@example.com", domain.RoleUser)
	inactive.Status = domain.UserStatusInactive
	users := newFakeUserRepo(activeUser("u1", "jane@example.com", domain.RoleUser), inactive)
	svc := newAuthService(users, newFakeResetRepo(), nil)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "correct-password"},
		{"wrong password", "jane@example.com", "wrong-password"},
		{"inactive account", "gone@example.com", "correct-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := svc.Login(context.Background(), tt.email, tt.password)
			require.Error(t, err)

			domainErr := apperrors.ToDomainError(err)
			assert.Equal(t, 401, domainErr.HTTPStatus)
			assert.Equal(t, "Invalid email or password", domainErr.Message,
				"failure reason must not be distinguishable")
		})
	}
}

func TestRefreshIssuesNewToken(t *testing.T) {
	existing := activeUser("u1", "jane@example.com", domain.RoleUser)
	svc := newAuthService(newFakeUserRepo(existing), newFakeResetRepo(), nil)

	token, exp, err := svc.Refresh(context.Background(), existing)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, exp.After(time.Now()))

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc := newAuthService(newFakeUserRepo(), newFakeResetRepo(), nil)

	token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestPasswordResetFlow(t *testing.T) {
	existing := activeUser("u1", "jane@example.com", domain.RoleUser)
	users := newFakeUserRepo(existing)
	resets := newFakeResetRepo()
	svc := newAuthService(users, resets, &recordingDispatcher{})

	token, err := svc.RequestPasswordReset(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "u1", token.UserID)

	require.NoError(t, svc.ConfirmPasswordReset(context.Background(), token.Token, "brand-new-password"))

	// old password no longer works, new one does
	_, _, _, err = svc.Login(context.Background(), "jane@example.com", "correct-password")
	assert.Error(t, err)
	_, _, _, err = svc.Login(context.Background(), "jane@example.com", "brand-new-password")
	assert.NoError(t, err)
}

func TestConfirmPasswordResetRejectsUsedToken(t *testing.T) {
	existing := activeUser("u1", "jane@example.com", domain.RoleUser)
	resets := newFakeResetRepo()
	svc := newAuthService(newFakeUserRepo(existing), resets, nil)

	token, err := svc.RequestPasswordReset(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPasswordReset(context.Background(), token.Token, "brand-new-password"))

	err = svc.ConfirmPasswordReset(context.Background(), token.Token, "another-password")
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.ToDomainError(err).HTTPStatus)
}

func TestConfirmPasswordResetRejectsExpiredToken(t *testing.T) {
	existing := activeUser("u1", "jane@example.com", domain.RoleUser)
	resets := newFakeResetRepo()
	svc := newAuthService(newFakeUserRepo(existing), resets, nil)

	token, err := svc.RequestPasswordReset(context.Background(), "jane@example.com")
	require.NoError(t, err)

	resets.mu.Lock()
	resets.tokens[token.Token].ExpiresAt = time.Now().Add(-time.Minute)
	resets.mu.Unlock()

	err = svc.ConfirmPasswordReset(context.Background(), token.Token, "another-password")
	require.Error(t, err)
}

func TestConfirmPasswordResetRejectsUnknownToken(t *testing.T) {
	svc := newAuthService(newFakeUserRepo(), newFakeResetRepo(), nil)

	err := svc.ConfirmPasswordReset(context.Background(), "bogus", "another-password")
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.ToDomainError(err).HTTPStatus)
}

func TestLogoutWithoutDenylistIsNoop(t *testing.T) {
	svc := newAuthService(newFakeUserRepo(), newFakeResetRepo(), nil)

	assert.NoError(t, svc.Logout(context.Background(), nil))
	assert.NoError(t, svc.Logout(context.Background(), &auth.Claims{JTI: "orphan-jti"}))
}

func TestLogoutRevokesTokenUntilExpiry(t *testing.T) {
	user := activeUser("u1", "jane@example.com", domain.RoleUser)
	revoker := newFakeRevoker()
	svc := NewAuthService(testConfig(), AuthDependencies{
		UserRepo:          newFakeUserRepo(user),
		PasswordResetRepo: newFakeResetRepo(),
		Denylist:          revoker,
	})

	token, exp, err := svc.TokenManager().GenerateToken(user)
	require.NoError(t, err)
	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims))

	assert.True(t, revoker.IsRevoked(context.Background(), claims.JTI))
	until, ok := revoker.revokedUntil(claims.JTI)
	require.True(t, ok)
	assert.WithinDuration(t, exp, until, time.Second)
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)
var _ repository.PasswordResetRepository = (*fakeResetRepo)(nil)
