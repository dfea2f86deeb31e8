package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minefield-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := services.NewJWTService("test-secret")

	token, err := svc.GenerateToken(42, "session-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	svc := services.NewJWTService("test-secret")

	token, err := svc.GenerateToken(42, "session-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token + "x")
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := services.NewJWTService("secret-a").GenerateToken(42, "session-1")
	require.NoError(t, err)

	_, err = services.NewJWTService("secret-b").ValidateToken(token)
	assert.Error(t, err)
}
