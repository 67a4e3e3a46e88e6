package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, VerifyPassword("hunter2", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("hunter2", "not-a-hash"))
}

func TestPermissionBitmask(t *testing.T) {
	assert.Equal(t, 0, PermissionBitmask(nil))

	admin := PermissionBitmask([]Permission{PermissionAdmin})
	assert.Equal(t, 1, admin)
	assert.Equal(t, []Permission{PermissionAdmin}, PermissionList(admin))
	assert.Empty(t, PermissionList(0))

	assert.True(t, HasPermissions(admin, admin))
	assert.True(t, HasPermissions(admin, 0))
	assert.False(t, HasPermissions(0, admin))
}

func TestAccessTokenRoundtrip(t *testing.T) {
	tokens := NewTokens("test-secret")

	signed, expires, err := tokens.CreateAccessToken("user-1", 1)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(AccessTokenTTL), expires, time.Minute)

	claims, err := tokens.ParseAccess(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, 1, claims.Scopes)
}

func TestRefreshTokenRoundtrip(t *testing.T) {
	tokens := NewTokens("test-secret")

	signed, _, err := tokens.CreateRefreshToken("user-1", "jti-abc")
	require.NoError(t, err)

	userID, jti, err := tokens.ParseRefresh(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "jti-abc", jti)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, _, err := NewTokens("secret-a").CreateAccessToken("user-1", 0)
	require.NoError(t, err)

	_, err = NewTokens("secret-b").ParseAccess(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	tokens := NewTokens("test-secret")
	claims := AccessClaims{
		Scopes: 0,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tokens.ParseAccess(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseRejectsUnsignedAlgorithm(t *testing.T) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens("test-secret").ParseAccess(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRequiresSubject(t *testing.T) {
	tokens := NewTokens("test-secret")
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tokens.ParseAccess(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
