package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-progress-api/internal/models"
	appErrors "github.com/noah-isme/course-progress-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{
		UserID: "stu-1",
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestTokenVerifierRejectsInvalidTokens(t *testing.T) {
	verifier := NewTokenVerifier("secret")

	expired := signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{
		UserID:           "stu-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	_, err := verifier.ValidateToken(expired)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), &models.JWTClaims{UserID: "stu-1"})
	_, err = verifier.ValidateToken(wrongKey)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	anonymous := signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{})
	_, err = verifier.ValidateToken(anonymous)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = verifier.ValidateToken("not-a-token")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
