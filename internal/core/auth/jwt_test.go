package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute)
	userID := uuid.New()

	token, expiresIn, err := svc.GenerateAccessToken(userID, "customer")
	require.NoError(t, err)
	assert.Positive(t, expiresIn)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "customer", claims.Role)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute)
	other := NewJWTService("other-secret", time.Minute)

	token, _, err := svc.GenerateAccessToken(uuid.New(), "customer")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestDownloadTokenBoundToFile(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute)
	userID := uuid.New()

	token, err := svc.GenerateDownloadToken(userID, "abc123.jpg")
	require.NoError(t, err)

	got, err := svc.ValidateDownloadToken(token, "abc123.jpg")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// The same token must not open a different file.
	_, err = svc.ValidateDownloadToken(token, "other.jpg")
	assert.Error(t, err)
}

func TestDownloadTokenRejectsAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute)

	token, _, err := svc.GenerateAccessToken(uuid.New(), "customer")
	require.NoError(t, err)

	_, err = svc.ValidateDownloadToken(token, "abc123.jpg")
	assert.Error(t, err)
}

func TestDownloadTokenExpires(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute)

	token, err := svc.GenerateDownloadToken(uuid.New(), "abc123.jpg")
	require.NoError(t, err)

	_, err = svc.ValidateDownloadToken(token, "abc123.jpg")
	assert.Error(t, err)
}
