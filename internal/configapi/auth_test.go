package configapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateLoginTokenRoundTrips(t *testing.T) {
	secret := []byte("test-signing-secret")
	token, err := issueLoginToken(secret, "admin")
	require.NoError(t, err)

	claims, err := validateLoginToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, jwtIssuer, claims.Issuer)
}

func TestValidateLoginTokenRejectsWrongSecret(t *testing.T) {
	token, err := issueLoginToken([]byte("secret-a"), "admin")
	require.NoError(t, err)

	_, err = validateLoginToken(token, []byte("secret-b"))
	assert.Error(t, err)
}

func TestValidateLoginTokenRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-signing-secret")
	claims := loginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Username: "admin",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = validateLoginToken(signed, secret)
	assert.Error(t, err)
}

func TestValidateLoginTokenRejectsWrongIssuer(t *testing.T) {
	secret := []byte("test-signing-secret")
	claims := loginClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: "admin",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = validateLoginToken(signed, secret)
	assert.Error(t, err)
}
