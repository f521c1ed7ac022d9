package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/user-service/internal/domain"
)

func testUser() *domain.User {
	return &domain.User{
		ID:     "11111111-2222-3333-4444-555555555555",
		Email:  "jane@example.com",
		Role:   domain.RoleAdmin,
		Status: domain.UserStatusActive,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, exp, err := tm.GenerateToken(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", claims.UserID)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.JTI)
}

func TestTokenDefaultTTLIsSevenDays(t *testing.T) {
	tm := NewTokenManager("test-secret", 0)

	_, exp, err := tm.GenerateToken(testUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, 5*time.Second)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	other := NewTokenManager("another-secret", 60)

	token, _, err := tm.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	tm.ttl = -time.Minute

	token, _, err := tm.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	_, err := tm.ParseToken("not.a.token")
	assert.Error(t, err)
}

func TestEachTokenGetsUniqueJTI(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	first, _, err := tm.GenerateToken(testUser())
	require.NoError(t, err)
	second, _, err := tm.GenerateToken(testUser())
	require.NoError(t, err)

	firstClaims, err := tm.ParseToken(first)
	require.NoError(t, err)
	secondClaims, err := tm.ParseToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.JTI, secondClaims.JTI)
}
