package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	auth, err := NewAuthService(testSecret, time.Hour, nil)
	require.NoError(t, err)
	auth.now = func() time.Time { return t0 }

	token, expires, err := auth.GenerateToken("web-1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), expires)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "web-1", claims.AgentID)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestTokenExpiry(t *testing.T) {
	auth, err := NewAuthService(testSecret, time.Hour, nil)
	require.NoError(t, err)
	auth.now = func() time.Time { return t0 }
	token, _, err := auth.GenerateToken("web-1")
	require.NoError(t, err)

	auth.now = func() time.Time { return t0.Add(2 * time.Hour) }
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenFromAnotherSecret(t *testing.T) {
	a, err := NewAuthService(testSecret, time.Hour, nil)
	require.NoError(t, err)
	b, err := NewAuthService("fedcba9876543210fedcba9876543210", time.Hour, nil)
	require.NoError(t, err)

	token, _, err := a.GenerateToken("web-1")
	require.NoError(t, err)
	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestAuthServiceRejectsShortSecret(t *testing.T) {
	_, err := NewAuthService("too-short", time.Hour, nil)
	assert.Error(t, err)
}

func TestNilAuthServiceIsDisabled(t *testing.T) {
	var auth *AuthService
	_, _, err := auth.GenerateToken("web-1")
	assert.ErrorIs(t, err, ErrAuthDisabled)
	_, err = auth.ValidateToken("a.b.c")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestGenerateTokenRequiresAgent(t *testing.T) {
	auth, err := NewAuthService(testSecret, time.Hour, nil)
	require.NoError(t, err)
	_, _, err = auth.GenerateToken("")
	assert.Error(t, err)
}
